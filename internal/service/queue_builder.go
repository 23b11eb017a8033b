package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"estate_tracker/internal/domain"
	"estate_tracker/internal/matcher"
	"estate_tracker/internal/metrics"
)

// QueueBuilder creates notification queue entries for (listing, user) pairs
// that match the user's preference. Each pair is queued at most once.
type QueueBuilder struct {
	listings  ListingStore
	users     UserStore
	queue     QueueStore
	txManager TransactionManager
	matcher   *matcher.Matcher
	logger    *slog.Logger
}

func NewQueueBuilder(
	listings ListingStore,
	users UserStore,
	queue QueueStore,
	txManager TransactionManager,
	m *matcher.Matcher,
	logger *slog.Logger,
) *QueueBuilder {
	return &QueueBuilder{
		listings:  listings,
		users:     users,
		queue:     queue,
		txManager: txManager,
		matcher:   m,
		logger:    logger.With("component", "queue_builder"),
	}
}

// Build evaluates listings new or changed since the given time against every
// subscriber. A failed insert affects only its own pair.
func (b *QueueBuilder) Build(ctx context.Context, since time.Time, site string) (*domain.QueueStats, error) {
	candidates, err := b.listings.ListCandidates(ctx, since, site)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	subscribers, err := b.users.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	stats := &domain.QueueStats{Users: len(subscribers), Candidates: len(candidates)}
	if len(candidates) == 0 || len(subscribers) == 0 {
		b.logger.Info("nothing to enqueue", "candidates", len(candidates), "users", len(subscribers))
		return stats, nil
	}

	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	for _, sub := range subscribers {
		b.enqueueFor(ctx, sub, candidates, ids, stats)
	}

	b.logger.Info("queue built",
		"since", since,
		"site", site,
		"users", stats.Users,
		"candidates", stats.Candidates,
		"queued", stats.Queued,
		"already_queued", stats.AlreadyQueued,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (b *QueueBuilder) enqueueFor(ctx context.Context, sub domain.Subscriber, candidates []domain.Candidate, ids []uuid.UUID, stats *domain.QueueStats) {
	log := b.logger.With("user_id", sub.User.ID)

	queued, err := b.queue.QueuedListingIDs(ctx, sub.User.ID, ids)
	if err != nil {
		log.Error("failed to load queued listings", "error", err)
		stats.Failed += len(candidates)
		metrics.QueueEntries.WithLabelValues("failed").Add(float64(len(candidates)))
		return
	}

	for _, c := range candidates {
		if queued[c.ID] {
			stats.AlreadyQueued++
			metrics.QueueEntries.WithLabelValues("already_queued").Inc()
			continue
		}
		if !b.matcher.Matches(c, sub.Preference) {
			stats.Rejected++
			metrics.QueueEntries.WithLabelValues("rejected").Inc()
			continue
		}

		entry := &domain.QueueEntry{ID: uuid.New(), ListingID: c.ID, UserID: sub.User.ID}
		err := b.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return b.queue.Insert(txCtx, entry)
		})
		switch {
		case err == nil:
			stats.Queued++
			metrics.QueueEntries.WithLabelValues("queued").Inc()
		case errors.Is(err, domain.ErrConflict):
			stats.AlreadyQueued++
			metrics.QueueEntries.WithLabelValues("already_queued").Inc()
		default:
			log.Error("failed to queue listing", "listing_id", c.ID, "error", err)
			stats.Failed++
			metrics.QueueEntries.WithLabelValues("failed").Inc()
		}
	}
}
