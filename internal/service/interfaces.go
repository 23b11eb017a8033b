package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"estate_tracker/internal/domain"
)

type SourceStore interface {
	GetByBaseURL(ctx context.Context, baseURL string) (*domain.Source, error)
	Insert(ctx context.Context, src *domain.Source) (uuid.UUID, error)
}

type SellerStore interface {
	FindByIdentity(ctx context.Context, sourceSellerID, name string, sellerType domain.SellerType) (*domain.Seller, error)
	Insert(ctx context.Context, seller *domain.Seller) (uuid.UUID, error)
	AttachAgent(ctx context.Context, sellerID uuid.UUID, registryNumber string) (bool, error)
}

type ListingStore interface {
	GetSnapshotByURL(ctx context.Context, url string) (*domain.Snapshot, error)
	Upsert(ctx context.Context, listing *domain.Listing) (uuid.UUID, error)
	MarkRemoved(ctx context.Context, url string) (bool, error)
	ApplyChanges(ctx context.Context, listingID uuid.UUID, changes []domain.ListingChange) error
	ListCandidates(ctx context.Context, since time.Time, site string) ([]domain.Candidate, error)
	ListActive(ctx context.Context, site string, limit int) ([]domain.ListingRef, error)
}

type PropertyStore interface {
	Exists(ctx context.Context, listingID uuid.UUID) (bool, error)
	Insert(ctx context.Context, property *domain.Property) error
	ApplyChanges(ctx context.Context, listingID uuid.UUID, changes []domain.ListingChange) error
}

type RawDataStore interface {
	Insert(ctx context.Context, raw *domain.RawData) error
}

type ImageStore interface {
	UpsertBatch(ctx context.Context, listingID uuid.UUID, urls []string) error
}

type ChangeStore interface {
	InsertBatch(ctx context.Context, changes []domain.ListingChange) error
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]domain.ListingChange, error)
}

type ErrorStore interface {
	Record(ctx context.Context, rec domain.ErrorRecord) error
	ClearURL(ctx context.Context, url string) (int64, error)
}

type ReportStore interface {
	Create(ctx context.Context, report *domain.Report) error
	Finish(ctx context.Context, report *domain.Report) error
}

type UserStore interface {
	Upsert(ctx context.Context, user *domain.User) (uuid.UUID, bool, error)
	GetByChatID(ctx context.Context, chatID string) (*domain.User, error)
	GetPreference(ctx context.Context, userID uuid.UUID) (*domain.UserPreference, error)
	SavePreference(ctx context.Context, pref *domain.UserPreference, keepExisting bool) error
	ListSubscribers(ctx context.Context) ([]domain.Subscriber, error)
}

type QueueStore interface {
	QueuedListingIDs(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	Insert(ctx context.Context, entry *domain.QueueEntry) error
	ListPending(ctx context.Context, limit int) ([]domain.PendingNotification, error)
	MarkSent(ctx context.Context, entryID uuid.UUID) error
}

// Source produces validated scraped listings.
type Source interface {
	Name() string
	Fetch(ctx context.Context, maxPages int) (*domain.Batch, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers a text to a chat recipient.
type Notifier interface {
	Send(ctx context.Context, recipientID, text string) error
}

type Prober interface {
	Status(ctx context.Context, url string) (int, error)
}
