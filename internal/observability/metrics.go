package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexify_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nexify_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexify_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexify_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ToggleOutcomes counts like and follow toggles by resulting label.
	ToggleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexify_toggle_outcomes_total",
		Help: "Like and follow toggles by kind and outcome",
	}, []string{"kind", "outcome"})

	// UniqueConflicts counts inserts that lost a race on a unique key pair.
	UniqueConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexify_unique_conflicts_total",
		Help: "Inserts resolved as already-existing because of a unique constraint",
	}, []string{"relation"})

	// JobRunsTotal counts background job runs by job and result.
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexify_job_runs_total",
		Help: "Background job runs by job and result",
	}, []string{"job", "result"})

	// JobDuration records background job duration.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexify_job_duration_seconds",
		Help:    "Background job duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"job"})

	// RecommendationsWritten counts users whose recommendation set was replaced.
	RecommendationsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexify_recommendations_written_total",
		Help: "Recommendation sets written by the recommendation job",
	})

	// CounterCorrections counts post counter columns fixed by reconciliation.
	CounterCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexify_counter_corrections_total",
		Help: "Posts whose denormalized counters were corrected",
	}, []string{"counter"})

	// NotificationFailures counts notifications that could not be delivered.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexify_notification_failures_total",
		Help: "Notification delivery failures by channel and template",
	}, []string{"channel", "template"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackJob returns a function that records a job's duration and result.
func TrackJob(job string) func(err error) {
	start := time.Now()
	return func(err error) {
		JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = "failure"
		}
		JobRunsTotal.WithLabelValues(job, result).Inc()
	}
}
