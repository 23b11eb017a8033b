package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type ChangeStore struct {
	conn *Conn
}

func NewChangeStore(conn *Conn) *ChangeStore {
	return &ChangeStore{conn: conn}
}

// InsertBatch appends all change rows in a single statement.
func (s *ChangeStore) InsertBatch(ctx context.Context, changes []domain.ListingChange) error {
	if len(changes) == 0 {
		return nil
	}

	const cols = 8
	var sb strings.Builder
	sb.WriteString(`INSERT INTO listing_changes (
		id, listing_id, raw_data_id, change_type, field, old_value, new_value, changed_at
	) VALUES `)
	valueArgs := make([]any, 0, len(changes)*cols)

	for i, c := range changes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*cols + j + 1))
		}
		sb.WriteString(")")

		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		valueArgs = append(valueArgs,
			id, c.ListingID, c.RawDataID, c.ChangeType, string(c.Field), c.OldValue, c.NewValue, c.ChangedAt)
	}

	return s.conn.run(ctx, "listing_changes.insert_batch", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx, sb.String(), valueArgs...)
		return err
	})
}

// ListByListing returns the audit trail of a listing, oldest first.
func (s *ChangeStore) ListByListing(ctx context.Context, listingID uuid.UUID) ([]domain.ListingChange, error) {
	type row struct {
		ID         uuid.UUID  `db:"id"`
		ListingID  uuid.UUID  `db:"listing_id"`
		RawDataID  *uuid.UUID `db:"raw_data_id"`
		ChangeType string     `db:"change_type"`
		Field      string     `db:"field"`
		OldValue   *string    `db:"old_value"`
		NewValue   *string    `db:"new_value"`
		ChangedAt  time.Time  `db:"changed_at"`
	}

	var rows []row
	err := s.conn.run(ctx, "listing_changes.list", func(ex sqlx.ExtContext) error {
		rows = rows[:0]
		return sqlx.SelectContext(ctx, ex, &rows, `
			SELECT id, listing_id, raw_data_id, change_type, field, old_value, new_value, changed_at
			FROM listing_changes
			WHERE listing_id = $1
			ORDER BY changed_at, field`, listingID)
	})
	if err != nil {
		return nil, err
	}

	changes := make([]domain.ListingChange, len(rows))
	for i, r := range rows {
		changes[i] = domain.ListingChange{
			ID:         r.ID,
			ListingID:  r.ListingID,
			RawDataID:  r.RawDataID,
			ChangeType: r.ChangeType,
			Field:      domain.Field(r.Field),
			OldValue:   r.OldValue,
			NewValue:   r.NewValue,
			ChangedAt:  r.ChangedAt,
		}
	}
	return changes, nil
}
