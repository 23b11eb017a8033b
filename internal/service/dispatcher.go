package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"estate_tracker/internal/config"
	"estate_tracker/internal/domain"
	"estate_tracker/internal/metrics"
)

// Dispatcher sends unsent queue entries to their recipients and marks them sent.
type Dispatcher struct {
	queue     QueueStore
	notifier  Notifier
	limiter   *rate.Limiter
	batchSize int
	logger    *slog.Logger
}

func NewDispatcher(queue QueueStore, notifier Notifier, logger *slog.Logger, cfg config.DispatchConfig) *Dispatcher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Dispatcher{
		queue:     queue,
		notifier:  notifier,
		limiter:   rate.NewLimiter(limit, burst),
		batchSize: cfg.BatchSize,
		logger:    logger.With("component", "dispatcher"),
	}
}

// Dispatch handles one bounded batch of pending entries. An entry that fails
// to send stays unsent and is retried by a later call.
func (d *Dispatcher) Dispatch(ctx context.Context) (*domain.DispatchStats, error) {
	pending, err := d.queue.ListPending(ctx, d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	stats := &domain.DispatchStats{Fetched: len(pending)}
	for _, p := range pending {
		log := d.logger.With("entry_id", p.EntryID, "listing_id", p.Listing.ID)

		if p.Listing.HasMissing() || p.Listing.Status != string(domain.StatusActive) {
			log.Debug("skipping entry with incomplete listing")
			stats.Skipped++
			metrics.Notifications.WithLabelValues("skipped").Inc()
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return stats, fmt.Errorf("wait for rate limiter: %w", err)
		}

		if err := d.notifier.Send(ctx, p.ChatID, FormatNotification(p.Listing)); err != nil {
			log.Warn("failed to send notification", "error", err)
			stats.Failed++
			metrics.Notifications.WithLabelValues("failed").Inc()
			continue
		}

		if err := d.queue.MarkSent(ctx, p.EntryID); err != nil {
			log.Error("notification sent but not marked", "error", err)
			stats.Failed++
			metrics.Notifications.WithLabelValues("failed").Inc()
			continue
		}

		stats.Sent++
		metrics.Notifications.WithLabelValues("sent").Inc()
	}

	if stats.Fetched > 0 {
		d.logger.Info("dispatch completed",
			"fetched", stats.Fetched,
			"sent", stats.Sent,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}
	return stats, nil
}
