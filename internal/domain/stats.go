package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStats holds the counters of one crawl run.
type RunStats struct {
	SourceName     string
	Pages          int
	Listings       int
	DistinctURLs   int
	Scraped        int
	Dropped        int
	New            int
	Changed        int
	Unchanged      int
	Failed         int
	ResponseErrors int
	Duration       time.Duration
}

// Report is the persisted form of RunStats.
type Report struct {
	ID                   uuid.UUID
	SourceName           string
	TotalPages           int
	TotalListings        int
	TotalActualListings  int
	TotalNewListings     int
	TotalChangedListings int
	ItemScrapedCount     int
	ItemDroppedCount     int
	ResponseErrorCount   int
	ElapsedTimeSeconds   float64
}

func (r *Report) Apply(stats *RunStats) {
	r.TotalPages = stats.Pages
	r.TotalListings = stats.Listings
	r.TotalActualListings = stats.DistinctURLs
	r.TotalNewListings = stats.New
	r.TotalChangedListings = stats.Changed
	r.ItemScrapedCount = stats.Scraped
	r.ItemDroppedCount = stats.Dropped
	r.ResponseErrorCount = stats.ResponseErrors
	r.ElapsedTimeSeconds = stats.Duration.Seconds()
}

type QueueStats struct {
	Users         int
	Candidates    int
	Queued        int
	AlreadyQueued int
	Rejected      int
	Failed        int
}

type DispatchStats struct {
	Fetched int
	Sent    int
	Skipped int
	Failed  int
}

type RemovalStats struct {
	Checked int
	Removed int
	Failed  int
}

// Batch is the output of one fetch from a listing source.
type Batch struct {
	Pages    int
	Listings []ScrapedListing
	Rejected []Rejection
}

// Rejection is a scraped record that failed structural validation.
type Rejection struct {
	URL string
	Err error
}
