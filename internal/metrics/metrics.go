// Package metrics provides Prometheus metrics for the crawl, queue and dispatch runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "estate_tracker"

var (
	// ListingsProcessed counts scraped listings by outcome.
	// Labels: outcome (new, changed, unchanged, dropped, failed)
	ListingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "listings_processed_total",
			Help:      "Total number of scraped listings by outcome",
		},
		[]string{"outcome"},
	)

	// ChangeRecords counts audit rows written per tracked field.
	ChangeRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "change_records_total",
			Help:      "Total number of listing change records written",
		},
		[]string{"field"},
	)

	ErrorsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "errors_recorded_total",
			Help:      "Total number of crawl errors written to the error log",
		},
		[]string{"type"},
	)

	CrawlDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "run_duration_seconds",
			Help:      "Duration of crawl runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// QueueEntries counts queue builder decisions.
	// Labels: result (queued, already_queued, rejected, failed)
	QueueEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "entries_total",
			Help:      "Total number of (listing, user) pairs evaluated by outcome",
		},
		[]string{"result"},
	)

	// Notifications counts dispatch attempts.
	// Labels: result (sent, skipped, failed)
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "notifications_total",
			Help:      "Total number of queued notifications handled by outcome",
		},
		[]string{"result"},
	)

	// RemovalChecks counts probes of active listings.
	// Labels: result (alive, removed, failed)
	RemovalChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "removal",
			Name:      "checks_total",
			Help:      "Total number of listing liveness probes by outcome",
		},
		[]string{"result"},
	)
)
