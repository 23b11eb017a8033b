package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"estate_tracker/internal/domain"
)

// UserService registers chat users and manages their listing preferences.
type UserService struct {
	users     UserStore
	txManager TransactionManager
	logger    *slog.Logger
}

func NewUserService(users UserStore, txManager TransactionManager, logger *slog.Logger) *UserService {
	return &UserService{
		users:     users,
		txManager: txManager,
		logger:    logger.With("component", "users"),
	}
}

// Register upserts the user by chat id. A user seen for the first time gets
// the default preference; an existing preference is never overwritten.
func (s *UserService) Register(ctx context.Context, user *domain.User) (uuid.UUID, error) {
	if user.ChatID == "" {
		return uuid.Nil, &domain.ValidationError{Field: "chat_id", Message: "must not be empty"}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	var (
		id       uuid.UUID
		inserted bool
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		id, inserted, err = s.users.Upsert(txCtx, user)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		pref := domain.DefaultPreference(id)
		if err := s.users.SavePreference(txCtx, &pref, true); err != nil {
			return fmt.Errorf("save default preference: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if inserted {
		s.logger.Info("user registered", "user_id", id, "chat_id", user.ChatID)
	}
	return id, nil
}

func (s *UserService) GetPreference(ctx context.Context, chatID string) (*domain.UserPreference, error) {
	user, err := s.users.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	pref, err := s.users.GetPreference(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return pref, nil
}

// UpdatePreference validates in and replaces the user's preference. Malformed
// input yields a *domain.ValidationError and leaves the stored value intact.
func (s *UserService) UpdatePreference(ctx context.Context, chatID string, in domain.PreferenceInput) (*domain.UserPreference, error) {
	user, err := s.users.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	pref, err := in.Parse(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SavePreference(ctx, &pref, false); err != nil {
		return nil, fmt.Errorf("save preference: %w", err)
	}

	s.logger.Info("preference updated", "user_id", user.ID, "enabled", pref.IsEnabled)
	return &pref, nil
}
