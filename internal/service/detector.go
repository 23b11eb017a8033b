package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"estate_tracker/internal/diff"
	"estate_tracker/internal/domain"
	"estate_tracker/internal/metrics"
)

// Detector records field-level changes between the stored snapshot and the
// current observation of a listing.
type Detector struct {
	changes    ChangeStore
	listings   ListingStore
	properties PropertyStore
	errors     ErrorStore
	txManager  TransactionManager
	logger     *slog.Logger
	now        func() time.Time
}

func NewDetector(
	changes ChangeStore,
	listings ListingStore,
	properties PropertyStore,
	errStore ErrorStore,
	txManager TransactionManager,
	logger *slog.Logger,
) *Detector {
	return &Detector{
		changes:    changes,
		listings:   listings,
		properties: properties,
		errors:     errStore,
		txManager:  txManager,
		logger:     logger.With("component", "detector"),
		now:        time.Now,
	}
}

// Detect writes one change row per differing tracked field and applies the
// new values to the owning tables in a single transaction. It reports whether
// anything changed. New listings never produce changes.
func (d *Detector) Detect(ctx context.Context, res *UpsertResult) (bool, error) {
	if res.Previous == nil {
		return false, nil
	}

	diffs := diff.Diff(res.Previous, res.Listing, &res.Property)
	if len(diffs) == 0 {
		return false, nil
	}

	changedAt := d.now().UTC()
	rows := make([]domain.ListingChange, len(diffs))
	for i, c := range diffs {
		rows[i] = domain.ListingChange{
			ID:         uuid.New(),
			ListingID:  res.ListingID,
			RawDataID:  res.Previous.RawDataID,
			ChangeType: c.Field.ChangeType(),
			Field:      c.Field,
			OldValue:   c.Old,
			NewValue:   c.New,
			ChangedAt:  changedAt,
		}
	}
	listingChanges, propertyChanges := domain.PartitionChanges(rows)

	err := d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := d.changes.InsertBatch(txCtx, rows); err != nil {
			return fmt.Errorf("insert changes: %w", err)
		}
		if err := d.listings.ApplyChanges(txCtx, res.ListingID, listingChanges); err != nil {
			return fmt.Errorf("apply listing changes: %w", err)
		}
		if err := d.properties.ApplyChanges(txCtx, res.ListingID, propertyChanges); err != nil {
			return fmt.Errorf("apply property changes: %w", err)
		}
		return nil
	})
	if err != nil {
		rec := domain.NewErrorRecord(res.Listing.URL, domain.ErrorTypeChangesInsert, err)
		metrics.ErrorsRecorded.WithLabelValues(rec.Type).Inc()
		if recErr := d.errors.Record(ctx, rec); recErr != nil {
			d.logger.Error("failed to record error", "url", rec.URL, "error", recErr)
		}
		return false, err
	}

	for _, c := range rows {
		metrics.ChangeRecords.WithLabelValues(string(c.Field)).Inc()
	}
	d.logger.Debug("listing changed", "url", res.Listing.URL, "fields", len(rows))
	return true, nil
}
