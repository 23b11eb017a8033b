package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type ErrorStore struct {
	conn *Conn
}

func NewErrorStore(conn *Conn) *ErrorStore {
	return &ErrorStore{conn: conn}
}

// Record logs a crawl error. A repeat of the same url, type and message only
// refreshes updated_at and the detail.
func (s *ErrorStore) Record(ctx context.Context, rec domain.ErrorRecord) error {
	query := `
		INSERT INTO errors (id, url, error_type, error_message, error_detail)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT unique_error DO UPDATE SET
			error_detail = EXCLUDED.error_detail,
			updated_at = NOW()`

	return s.conn.run(ctx, "errors.record", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx, query, uuid.New(), rec.URL, rec.Type, rec.Message, rec.Detail)
		return err
	})
}

// ClearURL deletes every error logged for url.
func (s *ErrorStore) ClearURL(ctx context.Context, url string) (int64, error) {
	var affected int64
	err := s.conn.run(ctx, "errors.clear_url", func(ex sqlx.ExtContext) error {
		res, err := ex.ExecContext(ctx, "DELETE FROM errors WHERE url = $1", url)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
