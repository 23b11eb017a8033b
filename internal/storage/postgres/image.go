package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ImageStore struct {
	conn *Conn
}

func NewImageStore(conn *Conn) *ImageStore {
	return &ImageStore{conn: conn}
}

// UpsertBatch stores the image urls of a listing in order. Urls already stored
// for the listing are left as they are.
func (s *ImageStore) UpsertBatch(ctx context.Context, listingID uuid.UUID, urls []string) error {
	seen := make(map[string]bool, len(urls))
	var unique []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" && !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	if len(unique) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO images (id, listing_id, url, sequence_number) VALUES ")
	valueArgs := make([]any, 0, len(unique)*3+1)
	valueArgs = append(valueArgs, listingID)

	for i, u := range unique {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i*3 + 2
		sb.WriteString("($")
		sb.WriteString(strconv.Itoa(n))
		sb.WriteString(", $1, $")
		sb.WriteString(strconv.Itoa(n + 1))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(n + 2))
		sb.WriteString(")")
		valueArgs = append(valueArgs, uuid.New(), u, i+1)
	}
	sb.WriteString(" ON CONFLICT (url, listing_id) DO NOTHING")

	return s.conn.run(ctx, "images.upsert_batch", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx, sb.String(), valueArgs...)
		return err
	})
}
