package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"estate_tracker/internal/domain"
)

type RegisterRequest struct {
	ChatID   string  `json:"chat_id"`
	Username *string `json:"username"`
	Name     *string `json:"name"`
}

type RegisterResponse struct {
	ID uuid.UUID `json:"id"`
}

type ChangeResponse struct {
	Field      string    `json:"field"`
	ChangeType string    `json:"change_type"`
	OldValue   *string   `json:"old_value"`
	NewValue   *string   `json:"new_value"`
	ChangedAt  time.Time `json:"changed_at"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.db.Ping(c.Request().Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	user := &domain.User{
		ChatID:   strings.TrimSpace(req.ChatID),
		Username: req.Username,
		Name:     req.Name,
	}
	id, err := s.users.Register(c.Request().Context(), user)
	if err != nil {
		return s.fail(c, err, "Failed to register user")
	}
	return c.JSON(http.StatusCreated, RegisterResponse{ID: id})
}

func (s *Server) handleGetPreference(c echo.Context) error {
	pref, err := s.users.GetPreference(c.Request().Context(), c.Param("chat_id"))
	if err != nil {
		return s.fail(c, err, "Failed to fetch preference")
	}
	return c.JSON(http.StatusOK, pref.Input())
}

func (s *Server) handleUpdatePreference(c echo.Context) error {
	var in domain.PreferenceInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	pref, err := s.users.UpdatePreference(c.Request().Context(), c.Param("chat_id"), in)
	if err != nil {
		return s.fail(c, err, "Failed to update preference")
	}
	return c.JSON(http.StatusOK, pref.Input())
}

func (s *Server) handleListChanges(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid listing ID"})
	}

	changes, err := s.changes.ListByListing(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err, "Failed to fetch changes")
	}

	resp := make([]ChangeResponse, len(changes))
	for i, ch := range changes {
		resp[i] = ChangeResponse{
			Field:      string(ch.Field),
			ChangeType: ch.ChangeType,
			OldValue:   ch.OldValue,
			NewValue:   ch.NewValue,
			ChangedAt:  ch.ChangedAt,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// fail maps service errors onto responses. Validation messages are returned verbatim.
func (s *Server) fail(c echo.Context, err error, msg string) error {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	default:
		s.logger.Error(msg, "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": msg})
	}
}
