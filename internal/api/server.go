// Package api exposes user registration, preference intake and listing
// history over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"estate_tracker/internal/domain"
)

type UserService interface {
	Register(ctx context.Context, user *domain.User) (uuid.UUID, error)
	GetPreference(ctx context.Context, chatID string) (*domain.UserPreference, error)
	UpdatePreference(ctx context.Context, chatID string, in domain.PreferenceInput) (*domain.UserPreference, error)
}

type ChangeLister interface {
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]domain.ListingChange, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo    *echo.Echo
	users   UserService
	changes ChangeLister
	db      Pinger
	logger  *slog.Logger
	addr    string
}

func NewServer(users UserService, changes ChangeLister, db Pinger, logger *slog.Logger, addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		users:   users,
		changes: changes,
		db:      db,
		logger:  logger.With("component", "api"),
		addr:    addr,
	}

	e.Use(middleware.Recover())
	e.Use(s.logRequests)

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/users", s.handleRegister)
	e.GET("/users/:chat_id/preferences", s.handleGetPreference)
	e.PUT("/users/:chat_id/preferences", s.handleUpdatePreference)
	e.GET("/listings/:id/changes", s.handleListChanges)

	return s
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Debug("http request",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"status", c.Response().Status,
			"duration", time.Since(start),
		)
		return err
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
