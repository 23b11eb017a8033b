package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type ReportStore struct {
	conn *Conn
}

func NewReportStore(conn *Conn) *ReportStore {
	return &ReportStore{conn: conn}
}

func (s *ReportStore) Create(ctx context.Context, report *domain.Report) error {
	return s.conn.run(ctx, "reports.create", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx,
			"INSERT INTO reports (id, source_name) VALUES ($1, $2)",
			report.ID, report.SourceName,
		)
		return err
	})
}

func (s *ReportStore) Finish(ctx context.Context, report *domain.Report) error {
	query := `
		UPDATE reports SET
			total_pages = $2,
			total_listings = $3,
			total_actual_listings = $4,
			total_new_listings = $5,
			total_changed_listings = $6,
			item_scraped_count = $7,
			item_dropped_count = $8,
			response_error_count = $9,
			elapsed_time_seconds = $10,
			updated_at = NOW()
		WHERE id = $1`

	return s.conn.run(ctx, "reports.finish", func(ex sqlx.ExtContext) error {
		res, err := ex.ExecContext(ctx, query,
			report.ID,
			report.TotalPages,
			report.TotalListings,
			report.TotalActualListings,
			report.TotalNewListings,
			report.TotalChangedListings,
			report.ItemScrapedCount,
			report.ItemDroppedCount,
			report.ResponseErrorCount,
			report.ElapsedTimeSeconds,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
