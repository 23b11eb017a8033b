package file

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const line = `{"url": "https://x/1", "title": "Flat", "short_description": null, "detail_description": null, "price": "N/A", "price_currency": null, "status": "active", "address": {"city": "Beograd", "municipality": null, "micro_location": null, "latitude": null, "longitude": null}, "property": {"property_type": null, "building_type": null, "size_m2": "54", "floor_number": "2", "total_floors": null, "rooms": "2.5", "property_state": null}, "seller": {"source_seller_id": "s1", "name": "Ana", "seller_type": null}, "source": {"name": "example", "base_url": "https://x"}, "images": ["https://x/a.jpg"], "raw_data": {"html": ""}}`

func TestFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.jsonl")
	content := strings.Join([]string{line, "", `{"url": "https://x/2", "title": "no other keys"}`, "not json"}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src := New(path, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	batch, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Pages)
	require.Len(t, batch.Listings, 1)
	assert.Equal(t, "N/A", batch.Listings[0].Price.String())
	require.Len(t, batch.Rejected, 2)
	assert.Equal(t, "https://x/2", batch.Rejected[0].URL)
	assert.Equal(t, "", batch.Rejected[1].URL)
	assert.Equal(t, "file:"+path, src.Name())
}

func TestFetch_MissingFile(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "missing.jsonl"), slog.Default())
	_, err := src.Fetch(context.Background(), 1)
	assert.Error(t, err)
}
