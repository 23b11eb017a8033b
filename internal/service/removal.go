package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"estate_tracker/internal/config"
	"estate_tracker/internal/domain"
	"estate_tracker/internal/metrics"
)

// RemovalChecker probes active listings and marks those whose page no longer
// answers 200 as removed.
type RemovalChecker struct {
	listings  ListingStore
	prober    Prober
	limiter   *rate.Limiter
	batchSize int
	site      string
	logger    *slog.Logger
}

func NewRemovalChecker(listings ListingStore, prober Prober, logger *slog.Logger, cfg config.RemovalConfig) *RemovalChecker {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &RemovalChecker{
		listings:  listings,
		prober:    prober,
		limiter:   rate.NewLimiter(limit, 1),
		batchSize: cfg.BatchSize,
		site:      cfg.SiteFilter,
		logger:    logger.With("component", "removal_checker"),
	}
}

func (r *RemovalChecker) Check(ctx context.Context) (*domain.RemovalStats, error) {
	active, err := r.listings.ListActive(ctx, r.site, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}

	stats := &domain.RemovalStats{}
	for _, ref := range active {
		if err := r.limiter.Wait(ctx); err != nil {
			return stats, fmt.Errorf("wait for rate limiter: %w", err)
		}
		stats.Checked++

		status, err := r.prober.Status(ctx, ref.URL)
		if err != nil {
			r.logger.Warn("probe failed", "url", ref.URL, "error", err)
			stats.Failed++
			metrics.RemovalChecks.WithLabelValues("failed").Inc()
			continue
		}
		if status == http.StatusOK {
			metrics.RemovalChecks.WithLabelValues("alive").Inc()
			continue
		}

		if _, err := r.listings.MarkRemoved(ctx, ref.URL); err != nil {
			r.logger.Error("failed to mark listing removed", "url", ref.URL, "error", err)
			stats.Failed++
			metrics.RemovalChecks.WithLabelValues("failed").Inc()
			continue
		}
		r.logger.Info("listing removed", "url", ref.URL, "status", status)
		stats.Removed++
		metrics.RemovalChecks.WithLabelValues("removed").Inc()
	}

	r.logger.Info("removal check completed",
		"checked", stats.Checked,
		"removed", stats.Removed,
		"failed", stats.Failed,
	)
	return stats, nil
}
