package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"estate_tracker/internal/domain"
	"estate_tracker/internal/metrics"
	"estate_tracker/internal/normalize"
)

// UpsertResult carries one stored observation to the later pipeline steps.
type UpsertResult struct {
	ListingID uuid.UUID
	IsNew     bool
	// Previous is the stored state before this observation, nil for new listings.
	Previous *domain.Snapshot
	Listing  domain.Listing
	Property domain.Property
}

// Upserter writes scraped listings into the listings table keyed by URL.
type Upserter struct {
	listings   ListingStore
	properties PropertyStore
	errors     ErrorStore
	logger     *slog.Logger
	now        func() time.Time
}

func NewUpserter(listings ListingStore, properties PropertyStore, errStore ErrorStore, logger *slog.Logger) *Upserter {
	return &Upserter{
		listings:   listings,
		properties: properties,
		errors:     errStore,
		logger:     logger.With("component", "upserter"),
		now:        time.Now,
	}
}

// Upsert stores the current observation of item. Items that cannot be stored
// are recorded in the error log and reported with an error wrapping
// domain.ErrDropped; an item without a title demotes its URL to removed.
func (u *Upserter) Upsert(ctx context.Context, item *domain.ScrapedListing, sourceID uuid.UUID, sellerID *uuid.UUID) (*UpsertResult, error) {
	if strings.TrimSpace(item.Title) == "" {
		return nil, u.markGone(ctx, item.URL)
	}

	prev, err := u.listings.GetSnapshotByURL(ctx, item.URL)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		prev = nil
	}

	id := uuid.New()
	if prev != nil {
		id = prev.Listing.ID
	}

	listing := normalize.Listing(item, id, sourceID, sellerID, u.now().UTC().Truncate(time.Second))

	storedID, err := u.listings.Upsert(ctx, &listing)
	if err != nil {
		return nil, u.handleFailure(ctx, item, err)
	}

	listing.ID = storedID
	if prev != nil {
		listing.FirstSeenAt = prev.Listing.FirstSeenAt
	}

	// A successful write supersedes earlier failures for this URL.
	if cleared, err := u.errors.ClearURL(ctx, item.URL); err != nil {
		u.logger.Warn("failed to clear error log", "url", item.URL, "error", err)
	} else if cleared > 0 {
		u.logger.Debug("cleared error log", "url", item.URL, "count", cleared)
	}

	return &UpsertResult{
		ListingID: storedID,
		IsNew:     prev == nil,
		Previous:  prev,
		Listing:   listing,
		Property:  normalize.Property(item, uuid.New(), storedID),
	}, nil
}

func (u *Upserter) handleFailure(ctx context.Context, item *domain.ScrapedListing, err error) error {
	if errors.Is(err, domain.ErrTransient) {
		return fmt.Errorf("upsert listing: %w", err)
	}

	u.record(ctx, domain.NewErrorRecord(item.URL, domain.ErrorTypeListingInsertion, err))
	return fmt.Errorf("upsert listing: %v: %w", err, domain.ErrDropped)
}

// markGone demotes url to removed. The stored row keeps its last known values.
func (u *Upserter) markGone(ctx context.Context, url string) error {
	removed, err := u.listings.MarkRemoved(ctx, url)
	if err != nil {
		u.logger.Warn("failed to mark listing removed", "url", url, "error", err)
	} else if removed {
		u.logger.Info("listing page is gone, marked removed", "url", url)
	}
	return fmt.Errorf("listing without title: %w", domain.ErrDropped)
}

// EnsureProperty inserts the property row of res unless the listing already has
// one. It reports whether a row was written.
func (u *Upserter) EnsureProperty(ctx context.Context, res *UpsertResult) (bool, error) {
	exists, err := u.properties.Exists(ctx, res.ListingID)
	if err != nil {
		return false, fmt.Errorf("check property: %w", err)
	}
	if exists {
		return false, nil
	}

	err = u.properties.Insert(ctx, &res.Property)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrConflict):
		return false, nil
	default:
		u.record(ctx, domain.NewErrorRecord(res.Listing.URL, domain.ErrorTypePropertyInsert, err))
		return false, fmt.Errorf("insert property: %w", err)
	}
}

func (u *Upserter) record(ctx context.Context, rec domain.ErrorRecord) {
	metrics.ErrorsRecorded.WithLabelValues(rec.Type).Inc()
	if err := u.errors.Record(ctx, rec); err != nil {
		u.logger.Error("failed to record error", "url", rec.URL, "type", rec.Type, "error", err)
	}
}
