package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type ListingStore struct {
	conn *Conn
}

func NewListingStore(conn *Conn) *ListingStore {
	return &ListingStore{conn: conn}
}

type snapshotRow struct {
	ID                uuid.UUID            `db:"id"`
	SourceID          uuid.UUID            `db:"source_id"`
	SellerID          *uuid.UUID           `db:"seller_id"`
	URL               string               `db:"url"`
	Title             string               `db:"title"`
	ShortDescription  *string              `db:"short_description"`
	DetailDescription *string              `db:"detail_description"`
	Price             float64              `db:"price"`
	PriceCurrency     *string              `db:"price_currency"`
	Status            domain.ListingStatus `db:"status"`
	ValidFrom         *time.Time           `db:"valid_from"`
	ValidTo           *time.Time           `db:"valid_to"`
	TotalViews        *int64               `db:"total_views"`
	City              *string              `db:"city"`
	Municipality      *string              `db:"municipality"`
	MicroLocation     *string              `db:"micro_location"`
	Latitude          *float64             `db:"latitude"`
	Longitude         *float64             `db:"longitude"`
	FirstSeenAt       time.Time            `db:"first_seen_at"`
	LastSeenAt        time.Time            `db:"last_seen_at"`

	PropertyID    *uuid.UUID `db:"property_id"`
	PropertyType  *string    `db:"property_type"`
	BuildingType  *string    `db:"building_type"`
	SizeM2        *float64   `db:"size_m2"`
	FloorNumber   *string    `db:"floor_number"`
	TotalFloors   *int64     `db:"total_floors"`
	Rooms         *float64   `db:"rooms"`
	PropertyState *string    `db:"property_state"`

	RawDataID *uuid.UUID `db:"raw_data_id"`
}

func (r *snapshotRow) toDomain() *domain.Snapshot {
	snap := &domain.Snapshot{
		Listing: domain.Listing{
			ID:                r.ID,
			SourceID:          r.SourceID,
			SellerID:          r.SellerID,
			URL:               r.URL,
			Title:             r.Title,
			ShortDescription:  r.ShortDescription,
			DetailDescription: r.DetailDescription,
			Price:             r.Price,
			PriceCurrency:     r.PriceCurrency,
			Status:            r.Status,
			ValidFrom:         r.ValidFrom,
			ValidTo:           r.ValidTo,
			TotalViews:        r.TotalViews,
			City:              r.City,
			Municipality:      r.Municipality,
			MicroLocation:     r.MicroLocation,
			Latitude:          r.Latitude,
			Longitude:         r.Longitude,
			FirstSeenAt:       r.FirstSeenAt,
			LastSeenAt:        r.LastSeenAt,
		},
		RawDataID: r.RawDataID,
	}
	if r.PropertyID != nil {
		snap.Property = &domain.Property{
			ID:            *r.PropertyID,
			ListingID:     r.ID,
			PropertyType:  r.PropertyType,
			BuildingType:  r.BuildingType,
			SizeM2:        r.SizeM2,
			FloorNumber:   r.FloorNumber,
			TotalFloors:   r.TotalFloors,
			Rooms:         r.Rooms,
			PropertyState: r.PropertyState,
		}
	}
	return snap
}

// GetSnapshotByURL reads the listing, its property and the id of its latest
// raw data as currently stored. Returns a NotFound error for unknown URLs.
func (s *ListingStore) GetSnapshotByURL(ctx context.Context, url string) (*domain.Snapshot, error) {
	query := `
		SELECT
			l.id, l.source_id, l.seller_id, l.url, l.title, l.short_description,
			l.detail_description, l.price, l.price_currency, l.status, l.valid_from,
			l.valid_to, l.total_views, l.city, l.municipality, l.micro_location,
			l.latitude, l.longitude, l.first_seen_at, l.last_seen_at,
			p.id AS property_id, p.property_type, p.building_type, p.size_m2,
			p.floor_number, p.total_floors, p.rooms, p.property_state,
			(
				SELECT r.id FROM raw_data r
				WHERE r.listing_id = l.id
				ORDER BY r.created_at DESC
				LIMIT 1
			) AS raw_data_id
		FROM listings l
		LEFT JOIN properties p ON p.listing_id = l.id
		WHERE l.url = $1`

	var row snapshotRow
	err := s.conn.run(ctx, "listings.get_snapshot", func(ex sqlx.ExtContext) error {
		return sqlx.GetContext(ctx, ex, &row, query, url)
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Upsert writes every mutable field of the listing keyed by url and refreshes
// last_seen_at. first_seen_at keeps the value of the first insert.
func (s *ListingStore) Upsert(ctx context.Context, listing *domain.Listing) (uuid.UUID, error) {
	query := `
		INSERT INTO listings (
			id, source_id, seller_id, url, title, short_description, detail_description,
			price, price_currency, status, valid_from, valid_to, total_views,
			city, municipality, micro_location, latitude, longitude,
			first_seen_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (url) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			seller_id = EXCLUDED.seller_id,
			title = EXCLUDED.title,
			short_description = EXCLUDED.short_description,
			detail_description = EXCLUDED.detail_description,
			price = EXCLUDED.price,
			price_currency = EXCLUDED.price_currency,
			status = EXCLUDED.status,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			total_views = EXCLUDED.total_views,
			city = EXCLUDED.city,
			municipality = EXCLUDED.municipality,
			micro_location = EXCLUDED.micro_location,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err := s.conn.run(ctx, "listings.upsert", func(ex sqlx.ExtContext) error {
		return ex.QueryRowxContext(ctx, query,
			listing.ID,
			listing.SourceID,
			listing.SellerID,
			listing.URL,
			listing.Title,
			listing.ShortDescription,
			listing.DetailDescription,
			listing.Price,
			listing.PriceCurrency,
			listing.Status,
			utcTime(listing.ValidFrom),
			utcTime(listing.ValidTo),
			listing.TotalViews,
			listing.City,
			listing.Municipality,
			listing.MicroLocation,
			listing.Latitude,
			listing.Longitude,
			listing.FirstSeenAt,
			listing.LastSeenAt,
		).Scan(&id)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// MarkRemoved demotes an active listing. It reports whether a row changed.
func (s *ListingStore) MarkRemoved(ctx context.Context, url string) (bool, error) {
	query := `
		UPDATE listings SET status = 'removed', updated_at = NOW()
		WHERE url = $1 AND status <> 'removed'`

	var affected int64
	err := s.conn.run(ctx, "listings.mark_removed", func(ex sqlx.ExtContext) error {
		res, err := ex.ExecContext(ctx, query, url)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected > 0, err
}

// ApplyChanges writes the new values of changed listing fields.
func (s *ListingStore) ApplyChanges(ctx context.Context, listingID uuid.UUID, changes []domain.ListingChange) error {
	return applyChanges(ctx, s.conn, domain.TableListings, "listings.apply_changes", listingID, changes)
}

// ListCandidates returns active, priced, sized listings on urls containing
// site that were first seen or changed at or after since.
func (s *ListingStore) ListCandidates(ctx context.Context, since time.Time, site string) ([]domain.Candidate, error) {
	query := `
		SELECT
			l.id, l.url, l.city, l.municipality, l.micro_location, l.price,
			p.size_m2, p.rooms, l.status, l.first_seen_at
		FROM listings l
		JOIN properties p ON p.listing_id = l.id
		WHERE l.status = 'active'
			AND l.price > 0
			AND p.size_m2 > 0
			AND l.url LIKE '%' || $2 || '%'
			AND (
				l.first_seen_at >= $1
				OR EXISTS (
					SELECT 1 FROM listing_changes c
					WHERE c.listing_id = l.id AND c.changed_at >= $1
				)
			)
		ORDER BY l.first_seen_at`

	var candidates []domain.Candidate
	err := s.conn.run(ctx, "listings.list_candidates", func(ex sqlx.ExtContext) error {
		candidates = candidates[:0]
		return sqlx.SelectContext(ctx, ex, &candidates, query, since, site)
	})
	return candidates, err
}

// ListActive returns active listings on urls containing site, oldest check first.
func (s *ListingStore) ListActive(ctx context.Context, site string, limit int) ([]domain.ListingRef, error) {
	query := `
		SELECT id, url FROM listings
		WHERE status = 'active' AND url LIKE '%' || $1 || '%'
		ORDER BY last_seen_at
		LIMIT $2`

	var refs []domain.ListingRef
	err := s.conn.run(ctx, "listings.list_active", func(ex sqlx.ExtContext) error {
		refs = refs[:0]
		return sqlx.SelectContext(ctx, ex, &refs, query, site, limit)
	})
	return refs, err
}

func applyChanges(ctx context.Context, conn *Conn, table domain.Table, op string, key uuid.UUID, changes []domain.ListingChange) error {
	p, err := buildChangePatch(table, changes)
	if err != nil {
		return classify(op, err)
	}
	if p.Empty() {
		return nil
	}
	query, args := p.Build(key)
	return conn.run(ctx, op, func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx, query, args...)
		return err
	})
}

// valid_from and valid_to are TIMESTAMP columns holding UTC wall time.
func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
