// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts ledger entries by action type and outcome
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpilot_actions_total",
			Help: "Automation actions recorded in the action ledger",
		},
		[]string{"action_type", "outcome"},
	)

	// QuotaStops counts batches cut short by the daily limit
	QuotaStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpilot_quota_stops_total",
			Help: "Rule batches stopped because the daily limit was reached",
		},
		[]string{"action_type"},
	)

	// PostsPublished counts publish outcomes
	PostsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpilot_posts_total",
			Help: "Posts that left the publishing state, by final status",
		},
		[]string{"status"},
	)

	// RetryAttempts observes how many attempts an external call needed
	RetryAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkpilot_retry_attempts",
			Help:    "Attempts used per wrapped external call",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"operation"},
	)

	// TaskDuration observes scheduler task run time
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkpilot_task_duration_seconds",
			Help:    "Scheduler task execution time",
			Buckets: []float64{.01, .1, .5, 1, 5, 30, 60, 300, 900},
		},
		[]string{"task"},
	)

	// TaskFailures counts task runs that returned an error or panicked
	TaskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpilot_task_failures_total",
			Help: "Scheduler task runs that failed",
		},
		[]string{"task"},
	)

	// BreakerState reports the LinkedIn circuit breaker state (0 closed, 1 half-open, 2 open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkpilot_circuit_breaker_state",
			Help: "Circuit breaker state per upstream",
		},
		[]string{"name"},
	)
)

// ObserveTask records one scheduler task run
func ObserveTask(task string, started time.Time, failed bool) {
	TaskDuration.WithLabelValues(task).Observe(time.Since(started).Seconds())
	if failed {
		TaskFailures.WithLabelValues(task).Inc()
	}
}
