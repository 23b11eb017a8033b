// Package feed reads scraped listings from the paged HTTP feed the scrapers publish.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"estate_tracker/internal/domain"
)

// Config holds feed source configuration.
type Config struct {
	Name           string
	BaseURL        string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source implements service.Source for the listing feed.
type Source struct {
	httpClient     *http.Client
	name           string
	baseURL        string
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new feed source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		name:           cfg.Name,
		baseURL:        cfg.BaseURL,
		pageSize:       cfg.PageSize,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", cfg.Name),
	}
}

// Name returns the name reports are filed under.
func (s *Source) Name() string {
	return s.name
}

// Fetch reads up to maxPages pages. Records failing structural validation are
// returned as rejections. When a page cannot be fetched the pages read so far
// are returned together with the error.
func (s *Source) Fetch(ctx context.Context, maxPages int) (*domain.Batch, error) {
	batch := &domain.Batch{}

	for page := 0; page < maxPages; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			return batch, fmt.Errorf("fetch page %d: %w", page, err)
		}

		batch.Pages++
		for _, raw := range resp.Listings {
			listing, err := domain.DecodeScrapedListing(raw)
			if err != nil {
				batch.Rejected = append(batch.Rejected, domain.Rejection{URL: domain.PeekURL(raw), Err: err})
				continue
			}
			batch.Listings = append(batch.Listings, *listing)
		}

		s.logger.Debug("fetched page",
			"page", page,
			"listings", len(resp.Listings),
			"total", len(batch.Listings),
			"rejected", len(batch.Rejected),
		)

		if page >= resp.PageInfo.NumPages-1 {
			break
		}
	}

	return batch, nil
}

func (s *Source) fetchPage(ctx context.Context, page int) (*APIResponse, error) {
	url := fmt.Sprintf("%s?pageSize=%d&page=%d", s.baseURL, s.pageSize, page)

	var resp *APIResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx, url)
		if err == nil {
			return resp, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, url string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "EstateTracker/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &apiResp, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}
