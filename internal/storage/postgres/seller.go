package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"estate_tracker/internal/domain"
)

type SellerStore struct {
	conn *Conn
}

func NewSellerStore(conn *Conn) *SellerStore {
	return &SellerStore{conn: conn}
}

// FindByIdentity returns the oldest seller with the given identity tuple. The
// tuple is not unique, so later duplicates are never returned.
func (s *SellerStore) FindByIdentity(ctx context.Context, sourceSellerID, name string, sellerType domain.SellerType) (*domain.Seller, error) {
	query := `
		SELECT id, source_seller_id, name, seller_type, primary_phone, primary_email, website, agent_id
		FROM sellers
		WHERE source_seller_id = $1 AND name = $2 AND seller_type = $3
		ORDER BY created_at
		LIMIT 1`

	var seller domain.Seller
	err := s.conn.run(ctx, "sellers.find_by_identity", func(ex sqlx.ExtContext) error {
		return sqlx.GetContext(ctx, ex, &seller, query, sourceSellerID, name, string(sellerType))
	})
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

func (s *SellerStore) Insert(ctx context.Context, seller *domain.Seller) (uuid.UUID, error) {
	query := `
		INSERT INTO sellers (
			id, source_seller_id, name, seller_type, primary_phone, primary_email, website, agent_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id uuid.UUID
	err := s.conn.run(ctx, "sellers.insert", func(ex sqlx.ExtContext) error {
		return ex.QueryRowxContext(ctx, query,
			seller.ID,
			seller.SourceSellerID,
			seller.Name,
			string(seller.SellerType),
			seller.PrimaryPhone,
			seller.PrimaryEmail,
			seller.Website,
			seller.AgentID,
		).Scan(&id)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// AttachAgent links an agency seller without an agent to the registry record
// with the given number. It reports whether a link was made.
func (s *SellerStore) AttachAgent(ctx context.Context, sellerID uuid.UUID, registryNumber string) (bool, error) {
	query := `
		UPDATE sellers s SET agent_id = a.id, updated_at = NOW()
		FROM agents a
		WHERE s.id = $1
			AND s.seller_type = 'agency'
			AND s.agent_id IS NULL
			AND a.registry_number = $2`

	var affected int64
	err := s.conn.run(ctx, "sellers.attach_agent", func(ex sqlx.ExtContext) error {
		res, err := ex.ExecContext(ctx, query, sellerID, registryNumber)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected > 0, err
}
