package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_events_consumed_total",
			Help: "Total number of bus records consumed (count)",
		},
		[]string{"topic", "status"},
	)

	NotificationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_created_total",
			Help: "Total number of notifications persisted (count)",
		},
		[]string{"event_type"},
	)

	DuplicateEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_duplicate_events_total",
			Help: "Total number of duplicate events skipped (count)",
		},
		[]string{"source"},
	)

	IngestProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_ingest_processing_duration_ms",
			Help:    "Per-record ingest pipeline duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	BroadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_broadcast_deliveries_total",
			Help: "Total number of per-session broadcast deliveries (count)",
		},
		[]string{"status"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_active_sessions",
			Help: "Number of open streaming sessions (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_retry_attempts_total",
			Help: "Total number of consumer retry attempts (count)",
		},
		[]string{"topic"},
	)

	DroppedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dropped_records_total",
			Help: "Total number of records dropped after exhausting retries (count)",
		},
		[]string{"topic"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_rate_limit_requests_total",
			Help: "Total number of requests evaluated by the rate limiter (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterIngestMetrics() {
	prometheus.MustRegister(
		EventsConsumedTotal,
		NotificationsCreatedTotal,
		DuplicateEventsTotal,
		IngestProcessingDuration,
		RetryAttemptsTotal,
		DroppedRecordsTotal,
	)
}

func RegisterStreamMetrics() {
	prometheus.MustRegister(
		BroadcastDeliveriesTotal,
		ActiveSessions,
	)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	)
}

func ObserveIngestDuration(d time.Duration, status string) {
	IngestProcessingDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}
