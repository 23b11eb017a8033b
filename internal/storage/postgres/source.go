package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type SourceStore struct {
	conn *Conn
}

func NewSourceStore(conn *Conn) *SourceStore {
	return &SourceStore{conn: conn}
}

func (s *SourceStore) GetByBaseURL(ctx context.Context, baseURL string) (*domain.Source, error) {
	var src domain.Source
	err := s.conn.run(ctx, "sources.get_by_base_url", func(ex sqlx.ExtContext) error {
		return sqlx.GetContext(ctx, ex, &src,
			"SELECT id, name, base_url FROM sources WHERE base_url = $1", baseURL)
	})
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// Insert creates a source. A concurrent insert of the same base url surfaces
// as a Conflict.
func (s *SourceStore) Insert(ctx context.Context, src *domain.Source) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.conn.run(ctx, "sources.insert", func(ex sqlx.ExtContext) error {
		return ex.QueryRowxContext(ctx,
			"INSERT INTO sources (id, name, base_url) VALUES ($1, $2, $3) RETURNING id",
			src.ID, src.Name, src.BaseURL,
		).Scan(&id)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
