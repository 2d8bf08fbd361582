// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Signup and login attempts by outcome",
		},
		[]string{"action", "outcome"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the auth rate limiter",
		},
		[]string{"path"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Stored submissions by type",
		},
		[]string{"type"},
	)

	ProgressEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_entries_total",
			Help: "Total number of saved progress entries",
		},
	)

	MigratedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migrated_records_total",
			Help: "Legacy records processed by the migration job",
		},
		[]string{"kind", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
