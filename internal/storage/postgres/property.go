package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type PropertyStore struct {
	conn *Conn
}

func NewPropertyStore(conn *Conn) *PropertyStore {
	return &PropertyStore{conn: conn}
}

func (s *PropertyStore) Exists(ctx context.Context, listingID uuid.UUID) (bool, error) {
	var exists bool
	err := s.conn.run(ctx, "properties.exists", func(ex sqlx.ExtContext) error {
		return sqlx.GetContext(ctx, ex, &exists,
			"SELECT EXISTS (SELECT 1 FROM properties WHERE listing_id = $1)", listingID)
	})
	return exists, err
}

// Insert stores the property of a listing once. A second insert for the same
// listing is a Conflict.
func (s *PropertyStore) Insert(ctx context.Context, p *domain.Property) error {
	query := `
		INSERT INTO properties (
			id, listing_id, property_type, building_type, size_m2,
			floor_number, total_floors, rooms, property_state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	return s.conn.run(ctx, "properties.insert", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx, query,
			p.ID,
			p.ListingID,
			p.PropertyType,
			p.BuildingType,
			p.SizeM2,
			p.FloorNumber,
			p.TotalFloors,
			p.Rooms,
			p.PropertyState,
		)
		return err
	})
}

func (s *PropertyStore) ApplyChanges(ctx context.Context, listingID uuid.UUID, changes []domain.ListingChange) error {
	return applyChanges(ctx, s.conn, domain.TableProperties, "properties.apply_changes", listingID, changes)
}
