package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"estate_tracker/internal/config"
	"estate_tracker/internal/domain"
	"estate_tracker/internal/metrics"
)

const (
	outcomeNew       = "new"
	outcomeChanged   = "changed"
	outcomeUnchanged = "unchanged"
	outcomeDropped   = "dropped"
	outcomeFailed    = "failed"
)

// CrawlService runs one reconciliation pass of a listing source against storage.
type CrawlService struct {
	source    Source
	resolver  *Resolver
	upserter  *Upserter
	detector  *Detector
	rawData   RawDataStore
	images    ImageStore
	errors    ErrorStore
	reports   ReportStore
	queue     *QueueBuilder
	logger    *slog.Logger
	config    config.CrawlConfig
	siteQuery string
}

func NewCrawlService(
	source Source,
	resolver *Resolver,
	upserter *Upserter,
	detector *Detector,
	rawData RawDataStore,
	images ImageStore,
	errStore ErrorStore,
	reports ReportStore,
	queue *QueueBuilder,
	logger *slog.Logger,
	cfg config.CrawlConfig,
	queueCfg config.QueueConfig,
) *CrawlService {
	return &CrawlService{
		source:    source,
		resolver:  resolver,
		upserter:  upserter,
		detector:  detector,
		rawData:   rawData,
		images:    images,
		errors:    errStore,
		reports:   reports,
		queue:     queue,
		logger:    logger.With("source", source.Name()),
		config:    cfg,
		siteQuery: queueCfg.SiteFilter,
	}
}

func (s *CrawlService) Run(ctx context.Context) (*domain.RunStats, error) {
	startTime := time.Now()
	stats := &domain.RunStats{SourceName: s.source.Name()}

	report := &domain.Report{ID: uuid.New(), SourceName: stats.SourceName}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	s.logger.Info("starting crawl", "report_id", report.ID, "max_pages", s.config.MaxPages)

	batch, err := s.source.Fetch(ctx, s.config.MaxPages)
	if err != nil {
		stats.ResponseErrors++
		s.logger.Warn("fetch incomplete", "error", err)
	}
	if err != nil && (batch == nil || batch.Pages == 0) {
		s.finish(ctx, report, stats, startTime)
		return stats, fmt.Errorf("fetch listings: %w", err)
	}
	if batch == nil {
		batch = &domain.Batch{}
	}

	stats.Pages = batch.Pages
	stats.Listings = len(batch.Listings) + len(batch.Rejected)

	seen := make(map[string]struct{}, stats.Listings)
	for _, rej := range batch.Rejected {
		seen[rej.URL] = struct{}{}
		stats.Dropped++
		metrics.ListingsProcessed.WithLabelValues(outcomeDropped).Inc()
		s.recordError(ctx, domain.NewErrorRecord(rej.URL, domain.ErrorTypeValidation, rej.Err))
	}

	for i := range batch.Listings {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("crawl interrupted", "processed", i, "error", err)
			break
		}

		item := &batch.Listings[i]
		seen[item.URL] = struct{}{}

		outcome := s.processItem(ctx, item)
		metrics.ListingsProcessed.WithLabelValues(outcome).Inc()
		switch outcome {
		case outcomeNew:
			stats.New++
			stats.Scraped++
		case outcomeChanged:
			stats.Changed++
			stats.Scraped++
		case outcomeUnchanged:
			stats.Unchanged++
			stats.Scraped++
		case outcomeDropped:
			stats.Dropped++
		default:
			stats.Failed++
		}
	}
	stats.DistinctURLs = len(seen)

	s.resolver.BackfillAgents(ctx)
	s.finish(ctx, report, stats, startTime)

	s.logger.Info("crawl completed",
		"pages", stats.Pages,
		"listings", stats.Listings,
		"new", stats.New,
		"changed", stats.Changed,
		"unchanged", stats.Unchanged,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
		"response_errors", stats.ResponseErrors,
		"duration", stats.Duration,
	)

	if s.config.Enqueue && s.queue != nil {
		since := startOfDay(startTime)
		if _, err := s.queue.Build(ctx, since, s.siteQuery); err != nil {
			return stats, fmt.Errorf("build queue: %w", err)
		}
	}

	return stats, nil
}

// processItem runs the per-listing pipeline and returns its outcome label.
// Every step commits on its own; a later failure keeps earlier writes.
func (s *CrawlService) processItem(ctx context.Context, item *domain.ScrapedListing) string {
	log := s.logger.With("url", item.URL)

	sourceID, err := s.resolver.ResolveSource(ctx, item.Source)
	if err != nil {
		log.Error("failed to resolve source", "error", err)
		return outcomeFailed
	}

	sellerID, err := s.resolver.ResolveSeller(ctx, item.Seller)
	if err != nil {
		log.Error("failed to resolve seller", "error", err)
		return outcomeFailed
	}

	res, err := s.upserter.Upsert(ctx, item, sourceID, &sellerID)
	if errors.Is(err, domain.ErrDropped) {
		log.Debug("listing dropped", "reason", err)
		return outcomeDropped
	}
	if err != nil {
		log.Error("failed to upsert listing", "error", err)
		return outcomeFailed
	}

	raw := &domain.RawData{
		ID:        uuid.New(),
		ListingID: res.ListingID,
		HTML:      item.RawData.HTML,
		Data:      item.RawData.Data,
	}
	if err := s.rawData.Insert(ctx, raw); err != nil {
		log.Warn("failed to store raw data", "error", err)
		s.recordError(ctx, domain.NewErrorRecord(item.URL, domain.ErrorTypeRawDataInsert, err))
	}

	if _, err := s.upserter.EnsureProperty(ctx, res); err != nil {
		log.Warn("failed to store property", "error", err)
	}

	if len(item.Images) > 0 {
		if err := s.images.UpsertBatch(ctx, res.ListingID, item.Images); err != nil {
			log.Warn("failed to store images", "error", err)
			s.recordError(ctx, domain.NewErrorRecord(item.URL, domain.ErrorTypeImageInsert, err))
		}
	}

	changed, err := s.detector.Detect(ctx, res)
	if err != nil {
		log.Error("failed to record changes", "error", err)
		return outcomeFailed
	}

	switch {
	case res.IsNew:
		return outcomeNew
	case changed:
		return outcomeChanged
	default:
		return outcomeUnchanged
	}
}

func (s *CrawlService) finish(ctx context.Context, report *domain.Report, stats *domain.RunStats, startTime time.Time) {
	stats.Duration = time.Since(startTime)
	metrics.CrawlDuration.Observe(stats.Duration.Seconds())

	report.Apply(stats)
	if err := s.reports.Finish(context.WithoutCancel(ctx), report); err != nil {
		s.logger.Error("failed to finish report", "report_id", report.ID, "error", err)
	}
}

func (s *CrawlService) recordError(ctx context.Context, rec domain.ErrorRecord) {
	metrics.ErrorsRecorded.WithLabelValues(rec.Type).Inc()
	if err := s.errors.Record(ctx, rec); err != nil {
		s.logger.Error("failed to record error", "url", rec.URL, "type", rec.Type, "error", err)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
