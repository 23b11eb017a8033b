// Package file reads scraped listings from a JSON Lines export, one record per line.
package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"estate_tracker/internal/domain"
)

const maxLineSize = 16 << 20

type Source struct {
	path   string
	logger *slog.Logger
}

func New(path string, logger *slog.Logger) *Source {
	return &Source{
		path:   path,
		logger: logger.With("source", "file", "path", path),
	}
}

func (s *Source) Name() string {
	return "file:" + s.path
}

// Fetch reads the whole file. maxPages is ignored; the file counts as one page.
func (s *Source) Fetch(ctx context.Context, _ int) (*domain.Batch, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open listings file: %w", err)
	}
	defer f.Close()

	batch := &domain.Batch{Pages: 1}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		listing, err := domain.DecodeScrapedListing(raw)
		if err != nil {
			s.logger.Debug("rejected record", "line", line, "error", err)
			batch.Rejected = append(batch.Rejected, domain.Rejection{URL: domain.PeekURL(raw), Err: err})
			continue
		}
		batch.Listings = append(batch.Listings, *listing)
	}
	if err := scanner.Err(); err != nil {
		return batch, fmt.Errorf("read listings file at line %d: %w", line, err)
	}

	s.logger.Debug("read listings file", "listings", len(batch.Listings), "rejected", len(batch.Rejected))
	return batch, nil
}
