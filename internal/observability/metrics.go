// Package observability provides Prometheus metrics for monitoring.
//
// Metrics are an injected handle rather than package globals: every component
// receives a *Metrics (which may be nil in tests) and records through its methods.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for the analytics worker.
type Metrics struct {
	// Task metrics
	TasksProcessed *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	ActiveTasks    prometheus.Gauge
	JobsEnqueued   *prometheus.CounterVec

	// Engine metrics
	ListingsProcessed      prometheus.Counter
	MarketTrendsCalculated prometheus.Counter
	ReportsGenerated       prometheus.Counter

	// Database metrics
	DBConnections     prometheus.Gauge
	DBConnectRetries  prometheus.Counter
	DBConnectFailures prometheus.Counter

	// Cache metrics
	CacheOperations *prometheus.CounterVec

	// Scheduler metrics
	SchedulerRuns *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on a fresh private registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "analytics"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		TasksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_processed_total",
			Help:      "Total processed tasks by type and status",
		}, []string{"task_type", "status"}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task processing duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"task_type"}),
		ActiveTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Currently active tasks",
		}),
		JobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Total jobs enqueued by queue",
		}, []string{"queue"}),

		ListingsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_processed_total",
			Help:      "Total listings read by the engines",
		}),
		MarketTrendsCalculated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_trends_calculated_total",
			Help:      "Total market trends calculated",
		}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_reports_generated_total",
			Help:      "Total comparable reports generated",
		}),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections",
			Help:      "Database connections currently held by tasks",
		}),
		DBConnectRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connect_retries_total",
			Help:      "Total failed connection attempts that were retried",
		}),
		DBConnectFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connect_failures_total",
			Help:      "Total acquisitions that exhausted the retry budget",
		}),

		CacheOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total cache operations by operation and status",
		}, []string{"op", "status"}),

		SchedulerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total scheduled job runs by job and status",
		}, []string{"job", "status"}),
	}
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// TaskStarted increments the active task gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.ActiveTasks.Inc()
}

// TaskFinished decrements the active task gauge and records the outcome.
func (m *Metrics) TaskFinished(taskType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveTasks.Dec()
	m.TasksProcessed.WithLabelValues(taskType, status).Inc()
	m.TaskDuration.WithLabelValues(taskType).Observe(d.Seconds())
}

// RecordEnqueued increments the enqueued counter for a queue.
func (m *Metrics) RecordEnqueued(queue string) {
	if m == nil {
		return
	}
	m.JobsEnqueued.WithLabelValues(queue).Inc()
}

// AddListingsProcessed adds n to the listings processed counter.
func (m *Metrics) AddListingsProcessed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ListingsProcessed.Add(float64(n))
}

// RecordTrendCalculated increments the market trends counter.
func (m *Metrics) RecordTrendCalculated() {
	if m == nil {
		return
	}
	m.MarketTrendsCalculated.Inc()
}

// RecordReportGenerated increments the reports counter.
func (m *Metrics) RecordReportGenerated() {
	if m == nil {
		return
	}
	m.ReportsGenerated.Inc()
}

// ConnAcquired increments the held connection gauge.
func (m *Metrics) ConnAcquired() {
	if m == nil {
		return
	}
	m.DBConnections.Inc()
}

// ConnReleased decrements the held connection gauge.
func (m *Metrics) ConnReleased() {
	if m == nil {
		return
	}
	m.DBConnections.Dec()
}

// RecordConnectRetry increments the connection retry counter.
func (m *Metrics) RecordConnectRetry() {
	if m == nil {
		return
	}
	m.DBConnectRetries.Inc()
}

// RecordConnectFailure increments the exhausted-retry counter.
func (m *Metrics) RecordConnectFailure() {
	if m == nil {
		return
	}
	m.DBConnectFailures.Inc()
}

// RecordCacheOp records a cache operation outcome.
func (m *Metrics) RecordCacheOp(op string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.CacheOperations.WithLabelValues(op, status).Inc()
}

// RecordSchedulerRun records a scheduled job outcome.
func (m *Metrics) RecordSchedulerRun(job string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.SchedulerRuns.WithLabelValues(job, status).Inc()
}
