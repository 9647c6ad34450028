// Package metrics provides Prometheus-based metrics collection for scanexport.
// Every PrometheusMetrics value owns its registry, so independent instances
// (one per server, one per test) never collide.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	// Namespace for all scanexport metrics
	namespace = "scanexport"

	// Subsystems
	subsystemBatch     = "batch"
	subsystemDatabase  = "database"
	subsystemAPI       = "api"
	subsystemScheduler = "scheduler"
	subsystemSystem    = "system"
)

// Batch outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Batch metrics
	documentsTotal *prometheus.CounterVec
	hostsTotal     *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	batchesTotal   *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec

	// Database metrics
	rowsStored *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// Scheduler metrics
	scheduledRuns *prometheus.CounterVec

	// System metrics
	uptime prometheus.GaugeFunc

	startTime time.Time
	mu        sync.Mutex
	lastBatch time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initBatchMetrics()
	pm.initDatabaseMetrics()
	pm.initAPIMetrics()
	pm.initSchedulerMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initBatchMetrics initializes batch conversion metrics
func (pm *PrometheusMetrics) initBatchMetrics() {
	pm.documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "documents_total",
			Help:      "Total number of source documents by export format and status",
		},
		[]string{"format", "status"},
	)

	pm.hostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "hosts_total",
			Help:      "Total number of hosts exported",
		},
		[]string{"format"},
	)

	pm.rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "rows_total",
			Help:      "Total number of host and port rows exported",
		},
		[]string{"format"},
	)

	pm.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "total",
			Help:      "Total number of batches by export format and outcome",
		},
		[]string{"format", "outcome"},
	)

	pm.batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "duration_seconds",
			Help:      "Duration of batches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"format"},
	)
}

// initDatabaseMetrics initializes database-related metrics
func (pm *PrometheusMetrics) initDatabaseMetrics() {
	pm.rowsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDatabase,
			Name:      "rows_total",
			Help:      "Total number of rows written to the database by status",
		},
		[]string{"status"},
	)
}

// initAPIMetrics initializes API-related metrics
func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

// initSchedulerMetrics initializes scheduler-related metrics
func (pm *PrometheusMetrics) initSchedulerMetrics() {
	pm.scheduledRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScheduler,
			Name:      "runs_total",
			Help:      "Total number of scheduled exports by job and outcome",
		},
		[]string{"job", "outcome"},
	)
}

// initSystemMetrics initializes system-related metrics
func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
		func() float64 {
			return time.Since(pm.startTime).Seconds()
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.documentsTotal,
		pm.hostsTotal,
		pm.rowsTotal,
		pm.batchesTotal,
		pm.batchDuration,
		pm.rowsStored,
		pm.httpRequests,
		pm.httpDuration,
		pm.scheduledRuns,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Push sends the registry to a Prometheus Pushgateway under job, replacing
// what was previously pushed for that job. Short-lived commands use it
// because nothing scrapes them.
func (pm *PrometheusMetrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(pm.registry).PushContext(ctx)
}

// RecordSource counts one processed source document.
func (pm *PrometheusMetrics) RecordSource(format, status string) {
	pm.documentsTotal.WithLabelValues(format, status).Inc()
}

// RecordBatch records the totals of a finished batch.
func (pm *PrometheusMetrics) RecordBatch(format string, hosts, rows int, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}

	pm.batchesTotal.WithLabelValues(format, outcome).Inc()
	pm.batchDuration.WithLabelValues(format).Observe(duration.Seconds())
	pm.hostsTotal.WithLabelValues(format).Add(float64(hosts))
	pm.rowsTotal.WithLabelValues(format).Add(float64(rows))

	pm.mu.Lock()
	pm.lastBatch = time.Now()
	pm.mu.Unlock()
}

// RecordStoredRows counts rows written to the database.
func (pm *PrometheusMetrics) RecordStoredRows(count int, err error) {
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeFailure
	}
	pm.rowsStored.WithLabelValues(status).Add(float64(count))
}

// RecordHTTPRequest records one served HTTP request.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordScheduledRun counts one scheduled export.
func (pm *PrometheusMetrics) RecordScheduledRun(job string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	pm.scheduledRuns.WithLabelValues(job, outcome).Inc()
}

// GetUptime returns the time since the metrics were created.
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// LastBatch returns when the last batch finished, or the zero time.
func (pm *PrometheusMetrics) LastBatch() time.Time {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.lastBatch
}
