package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type RawDataStore struct {
	conn *Conn
}

func NewRawDataStore(conn *Conn) *RawDataStore {
	return &RawDataStore{conn: conn}
}

func (s *RawDataStore) Insert(ctx context.Context, raw *domain.RawData) error {
	// lib/pq would send []byte as bytea, so the JSON goes over as text.
	data := "{}"
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		data = string(raw.Data)
	}

	return s.conn.run(ctx, "raw_data.insert", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx,
			"INSERT INTO raw_data (id, listing_id, html, data) VALUES ($1, $2, $3, $4)",
			raw.ID, raw.ListingID, raw.HTML, data,
		)
		return err
	})
}
