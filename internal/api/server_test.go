package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate_tracker/internal/domain"
)

type fakeUsers struct {
	prefs map[string]*domain.UserPreference
}

func (f *fakeUsers) Register(ctx context.Context, user *domain.User) (uuid.UUID, error) {
	if user.ChatID == "" {
		return uuid.Nil, &domain.ValidationError{Field: "chat_id", Message: "must not be empty"}
	}
	id := uuid.New()
	p := domain.DefaultPreference(id)
	f.prefs[user.ChatID] = &p
	return id, nil
}

func (f *fakeUsers) GetPreference(ctx context.Context, chatID string) (*domain.UserPreference, error) {
	p, ok := f.prefs[chatID]
	if !ok {
		return nil, &domain.StoreError{Kind: domain.KindNotFound, Op: "users.get_by_chat_id", Err: errors.New("no rows")}
	}
	return p, nil
}

func (f *fakeUsers) UpdatePreference(ctx context.Context, chatID string, in domain.PreferenceInput) (*domain.UserPreference, error) {
	current, err := f.GetPreference(ctx, chatID)
	if err != nil {
		return nil, err
	}
	p, err := in.Parse(current.UserID)
	if err != nil {
		return nil, err
	}
	f.prefs[chatID] = &p
	return &p, nil
}

type fakeChanges struct {
	rows []domain.ListingChange
	err  error
}

func (f *fakeChanges) ListByListing(ctx context.Context, listingID uuid.UUID) ([]domain.ListingChange, error) {
	return f.rows, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func setupTestServer(t *testing.T, changes *fakeChanges, db fakePinger) (*Server, *fakeUsers) {
	t.Helper()
	users := &fakeUsers{prefs: map[string]*domain.UserPreference{}}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewServer(users, changes, db, logger, ":0"), users
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s, _ := setupTestServer(t, &fakeChanges{}, fakePinger{})
		rec := do(s, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("database down", func(t *testing.T) {
		s, _ := setupTestServer(t, &fakeChanges{}, fakePinger{err: errors.New("connection refused")})
		rec := do(s, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := setupTestServer(t, &fakeChanges{}, fakePinger{})
	rec := do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRegisterAndPreferences(t *testing.T) {
	s, _ := setupTestServer(t, &fakeChanges{}, fakePinger{})

	rec := do(s, http.MethodPost, "/users", `{"chat_id":"42","username":"ana"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, http.MethodGet, "/users/42/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "50000-150000", got["price"])
	assert.Equal(t, "45-120", got["size"])
	assert.Equal(t, []any{"Beograd"}, got["city"])

	rec = do(s, http.MethodPut, "/users/42/preferences",
		`{"city":"Novi Sad","price":"60000-90000","size":"40-70","rooms":[2,2.5],"is_enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "60000-90000", got["price"])
	assert.Equal(t, []any{"Novi Sad"}, got["city"])
}

func TestUpdatePreference_ValidationMessages(t *testing.T) {
	s, _ := setupTestServer(t, &fakeChanges{}, fakePinger{})
	require.Equal(t, http.StatusCreated, do(s, http.MethodPost, "/users", `{"chat_id":"42"}`).Code)

	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"no hyphen", "50000", "Should include hyphen"},
		{"too many hyphens", "1-2-3", "Too many hyphens"},
		{"empty min", "-100", "X should not be empty"},
		{"not numbers", "a-b", "Must be numbers only"},
		{"reversed", "200-100", "X should be less than Y value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"city":"Beograd","price":"` + tt.price + `","size":"40-70","rooms":"3"}`
			rec := do(s, http.MethodPut, "/users/42/preferences", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp["error"])
		})
	}
}

func TestGetPreference_UnknownUser(t *testing.T) {
	s, _ := setupTestServer(t, &fakeChanges{}, fakePinger{})
	rec := do(s, http.MethodGet, "/users/999/preferences", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister_EmptyChatID(t *testing.T) {
	s, _ := setupTestServer(t, &fakeChanges{}, fakePinger{})
	rec := do(s, http.MethodPost, "/users", `{"chat_id":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListChanges(t *testing.T) {
	old, next := "100000", "110000"
	changes := &fakeChanges{rows: []domain.ListingChange{{
		ID:         uuid.New(),
		Field:      domain.FieldPrice,
		ChangeType: "price_change",
		OldValue:   &old,
		NewValue:   &next,
		ChangedAt:  time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	}}}
	s, _ := setupTestServer(t, changes, fakePinger{})

	rec := do(s, http.MethodGet, "/listings/"+uuid.NewString()+"/changes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []ChangeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "price", resp[0].Field)
	assert.Equal(t, "110000", *resp[0].NewValue)

	rec = do(s, http.MethodGet, "/listings/not-a-uuid/changes", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListChanges_StoreError(t *testing.T) {
	s, _ := setupTestServer(t, &fakeChanges{err: errors.New("db down")}, fakePinger{})
	rec := do(s, http.MethodGet, "/listings/"+uuid.NewString()+"/changes", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
