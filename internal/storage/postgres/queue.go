package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"estate_tracker/internal/domain"
)

type QueueStore struct {
	conn *Conn
}

func NewQueueStore(conn *Conn) *QueueStore {
	return &QueueStore{conn: conn}
}

// QueuedListingIDs returns which of listingIDs already have an entry for the user.
func (s *QueueStore) QueuedListingIDs(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	queued := make(map[uuid.UUID]bool)
	if len(listingIDs) == 0 {
		return queued, nil
	}

	ids := make([]string, len(listingIDs))
	for i, id := range listingIDs {
		ids[i] = id.String()
	}

	var found []uuid.UUID
	err := s.conn.run(ctx, "queue_entries.queued_listing_ids", func(ex sqlx.ExtContext) error {
		found = found[:0]
		return sqlx.SelectContext(ctx, ex, &found,
			"SELECT listing_id FROM queue_entries WHERE user_id = $1 AND listing_id = ANY($2::uuid[])",
			userID, pq.Array(ids))
	})
	if err != nil {
		return nil, err
	}

	for _, id := range found {
		queued[id] = true
	}
	return queued, nil
}

// Insert creates a queue entry. A second entry for the same listing and user
// is a Conflict.
func (s *QueueStore) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	return s.conn.run(ctx, "queue_entries.insert", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx,
			"INSERT INTO queue_entries (id, listing_id, user_id, is_sent) VALUES ($1, $2, $3, $4)",
			entry.ID, entry.ListingID, entry.UserID, entry.IsSent,
		)
		return err
	})
}

// ListPending returns up to limit unsent entries, oldest first. Entries whose
// listing is inactive or lacks message data stay queued but are not returned.
func (s *QueueStore) ListPending(ctx context.Context, limit int) ([]domain.PendingNotification, error) {
	type row struct {
		EntryID       uuid.UUID `db:"entry_id"`
		ChatID        string    `db:"chat_id"`
		ID            uuid.UUID `db:"id"`
		URL           string    `db:"url"`
		City          *string   `db:"city"`
		Municipality  *string   `db:"municipality"`
		MicroLocation *string   `db:"micro_location"`
		Price         float64   `db:"price"`
		SizeM2        *float64  `db:"size_m2"`
		Rooms         *float64  `db:"rooms"`
		Status        string    `db:"status"`
		FirstSeenAt   time.Time `db:"first_seen_at"`
	}

	query := `
		SELECT
			q.id AS entry_id, u.chat_id,
			l.id, l.url, l.city, l.municipality, l.micro_location, l.price,
			p.size_m2, p.rooms, l.status, l.first_seen_at
		FROM queue_entries q
		JOIN users u ON u.id = q.user_id
		JOIN listings l ON l.id = q.listing_id
		LEFT JOIN properties p ON p.listing_id = l.id
		WHERE NOT q.is_sent
			AND l.status = 'active'
			AND l.price > 0
			AND COALESCE(l.city, '') <> ''
			AND COALESCE(p.size_m2, 0) > 0
			AND COALESCE(p.rooms, 0) > 0
		ORDER BY q.created_at
		LIMIT $1`

	var rows []row
	err := s.conn.run(ctx, "queue_entries.list_pending", func(ex sqlx.ExtContext) error {
		rows = rows[:0]
		return sqlx.SelectContext(ctx, ex, &rows, query, limit)
	})
	if err != nil {
		return nil, err
	}

	pending := make([]domain.PendingNotification, len(rows))
	for i, r := range rows {
		pending[i] = domain.PendingNotification{
			EntryID: r.EntryID,
			ChatID:  r.ChatID,
			Listing: domain.Candidate{
				ID:            r.ID,
				URL:           r.URL,
				City:          r.City,
				Municipality:  r.Municipality,
				MicroLocation: r.MicroLocation,
				Price:         r.Price,
				SizeM2:        r.SizeM2,
				Rooms:         r.Rooms,
				Status:        r.Status,
				FirstSeenAt:   r.FirstSeenAt,
			},
		}
	}
	return pending, nil
}

func (s *QueueStore) MarkSent(ctx context.Context, entryID uuid.UUID) error {
	return s.conn.run(ctx, "queue_entries.mark_sent", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx,
			"UPDATE queue_entries SET is_sent = TRUE, updated_at = NOW() WHERE id = $1", entryID)
		return err
	})
}
