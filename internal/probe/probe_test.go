package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/alive", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/alive", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(time.Second)

	for path, want := range map[string]int{
		"/alive":   http.StatusOK,
		"/moved":   http.StatusOK,
		"/gone":    http.StatusGone,
		"/missing": http.StatusNotFound,
	} {
		got, err := c.Status(context.Background(), srv.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
}

func TestStatus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(time.Second).Status(context.Background(), url)
	assert.Error(t, err)
}
