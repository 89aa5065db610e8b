package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablet_tracker_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablet_tracker_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SubmissionsRecorded counts submissions by type and resolver outcome.
	SubmissionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablet_tracker_submissions_recorded_total",
			Help: "Submissions recorded, by submission type and bag binding result.",
		},
		[]string{"type", "resolution"},
	)

	LedgerMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablet_tracker_ledger_mutations_total",
			Help: "PO ledger mutations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablet_tracker_tx_retries_total",
			Help: "Transactions retried after a serialization failure or deadlock.",
		},
	)

	BagStatusCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablet_tracker_bag_status_cache_total",
			Help: "Bag status cache lookups by result.",
		},
		[]string{"result"},
	)
)
