package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"estate_tracker/internal/domain"
)

type UserStore struct {
	conn *Conn
}

func NewUserStore(conn *Conn) *UserStore {
	return &UserStore{conn: conn}
}

// Upsert registers a user by chat id, refreshing the display fields of an
// existing one. It returns the stored id and whether the user is new.
func (s *UserStore) Upsert(ctx context.Context, user *domain.User) (uuid.UUID, bool, error) {
	query := `
		INSERT INTO users (id, chat_id, username, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE SET
			username = EXCLUDED.username,
			name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted`

	var (
		id       uuid.UUID
		inserted bool
	)
	err := s.conn.run(ctx, "users.upsert", func(ex sqlx.ExtContext) error {
		return ex.QueryRowxContext(ctx, query, user.ID, user.ChatID, user.Username, user.Name).Scan(&id, &inserted)
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, inserted, nil
}

func (s *UserStore) GetByChatID(ctx context.Context, chatID string) (*domain.User, error) {
	var user domain.User
	err := s.conn.run(ctx, "users.get_by_chat_id", func(ex sqlx.ExtContext) error {
		return sqlx.GetContext(ctx, ex, &user,
			"SELECT id, chat_id, username, name FROM users WHERE chat_id = $1", chatID)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type preferenceRow struct {
	UserID    uuid.UUID       `db:"user_id"`
	Cities    pq.StringArray  `db:"cities"`
	PriceMin  float64         `db:"price_min"`
	PriceMax  float64         `db:"price_max"`
	SizeMin   float64         `db:"size_min"`
	SizeMax   float64         `db:"size_max"`
	Rooms     pq.Float64Array `db:"rooms"`
	IsEnabled bool            `db:"is_enabled"`
}

func (r preferenceRow) toDomain() domain.UserPreference {
	return domain.UserPreference{
		UserID:    r.UserID,
		Cities:    []string(r.Cities),
		PriceMin:  r.PriceMin,
		PriceMax:  r.PriceMax,
		SizeMin:   r.SizeMin,
		SizeMax:   r.SizeMax,
		Rooms:     []float64(r.Rooms),
		IsEnabled: r.IsEnabled,
	}
}

const preferenceColumns = "user_id, cities, price_min, price_max, size_min, size_max, rooms, is_enabled"

func (s *UserStore) GetPreference(ctx context.Context, userID uuid.UUID) (*domain.UserPreference, error) {
	var row preferenceRow
	err := s.conn.run(ctx, "user_preferences.get", func(ex sqlx.ExtContext) error {
		return sqlx.GetContext(ctx, ex, &row,
			"SELECT "+preferenceColumns+" FROM user_preferences WHERE user_id = $1", userID)
	})
	if err != nil {
		return nil, err
	}
	pref := row.toDomain()
	return &pref, nil
}

// SavePreference replaces the user's preference. With keepExisting set an
// existing preference is left untouched.
func (s *UserStore) SavePreference(ctx context.Context, pref *domain.UserPreference, keepExisting bool) error {
	onConflict := `
		ON CONFLICT (user_id) DO UPDATE SET
			cities = EXCLUDED.cities,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			size_min = EXCLUDED.size_min,
			size_max = EXCLUDED.size_max,
			rooms = EXCLUDED.rooms,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = NOW()`
	if keepExisting {
		onConflict = " ON CONFLICT (user_id) DO NOTHING"
	}
	query := "INSERT INTO user_preferences (" + preferenceColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)" + onConflict

	return s.conn.run(ctx, "user_preferences.save", func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx, query,
			pref.UserID,
			pq.StringArray(pref.Cities),
			pref.PriceMin,
			pref.PriceMax,
			pref.SizeMin,
			pref.SizeMax,
			pq.Float64Array(pref.Rooms),
			pref.IsEnabled,
		)
		return err
	})
}

// ListSubscribers returns every user that has a preference, enabled or not.
func (s *UserStore) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	type row struct {
		ID       uuid.UUID `db:"id"`
		ChatID   string    `db:"chat_id"`
		Username *string   `db:"username"`
		Name     *string   `db:"name"`
		preferenceRow
	}

	query := `
		SELECT
			u.id, u.chat_id, u.username, u.name,
			p.user_id, p.cities, p.price_min, p.price_max, p.size_min, p.size_max, p.rooms, p.is_enabled
		FROM users u
		JOIN user_preferences p ON p.user_id = u.id
		ORDER BY u.created_at`

	var rows []row
	err := s.conn.run(ctx, "users.list_subscribers", func(ex sqlx.ExtContext) error {
		rows = rows[:0]
		return sqlx.SelectContext(ctx, ex, &rows, query)
	})
	if err != nil {
		return nil, err
	}

	subs := make([]domain.Subscriber, len(rows))
	for i, r := range rows {
		subs[i] = domain.Subscriber{
			User:       domain.User{ID: r.ID, ChatID: r.ChatID, Username: r.Username, Name: r.Name},
			Preference: r.preferenceRow.toDomain(),
		}
	}
	return subs, nil
}
