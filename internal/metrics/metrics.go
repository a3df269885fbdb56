// Package metrics exposes Prometheus instrumentation for the API server and
// the admin console.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "continuum_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "continuum_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Sync Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "continuum_sync_runs_total",
			Help: "Total number of sync jobs by method and outcome",
		},
		[]string{"method", "outcome"}, // outcome: "done", "error", "locked"
	)

	SyncCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "continuum_sync_created_total",
			Help: "Total number of postmortems created by sync jobs",
		},
		[]string{"method"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "continuum_sync_duration_seconds",
			Help:    "Duration of sync jobs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method"},
	)

	SyncStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "continuum_sync_streams_active",
			Help: "Number of sync progress streams currently open on the API server",
		},
	)

	// Relay Metrics
	RelayStreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "continuum_relay_streams_total",
			Help: "Total number of relayed sync streams by outcome",
		},
		[]string{"outcome"}, // "completed", "upstream_error", "client_gone", "unauthorized"
	)

	RelayBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "continuum_relay_bytes_total",
			Help: "Total number of bytes forwarded from the API server to console clients",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "continuum_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "continuum_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Moderation Metrics
	ModerationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "continuum_moderation_actions_total",
			Help: "Total number of moderation actions by action and result",
		},
		[]string{"action", "result"},
	)

	// Cache Metrics
	ListingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "continuum_listing_cache_hits_total",
			Help: "Total number of public listing cache hits",
		},
	)

	ListingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "continuum_listing_cache_misses_total",
			Help: "Total number of public listing cache misses",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSyncRun records the outcome of one sync job
func RecordSyncRun(method, outcome string, created int, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(method, outcome).Inc()
	SyncDuration.WithLabelValues(method).Observe(duration.Seconds())
	if created > 0 {
		SyncCreatedTotal.WithLabelValues(method).Add(float64(created))
	}
}

// RecordRelayStream records how a relayed stream ended and how much it carried
func RecordRelayStream(outcome string, bytes int64) {
	RelayStreamsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		RelayBytesTotal.Add(float64(bytes))
	}
}

// RecordBreakerTransition records a circuit breaker state change.
// States are "closed", "half-open" and "open".
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordModeration records one moderation action
func RecordModeration(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ModerationActionsTotal.WithLabelValues(action, result).Inc()
}

// RecordCacheAccess records a public listing cache lookup
func RecordCacheAccess(hit bool) {
	if hit {
		ListingCacheHits.Inc()
		return
	}
	ListingCacheMisses.Inc()
}
