// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

//go:generate mockgen -source=interface.go -destination=mocks/mock_metrics.go -package=mocks

import (
	"net/http"
	"time"
)

// MetricsRegistry defines the metric operations used across scanexport.
// This interface allows for easy mocking and testing of metrics functionality.
type MetricsRegistry interface {
	// RecordSource counts one processed source document.
	RecordSource(format, status string)

	// RecordBatch records the totals of a finished batch.
	RecordBatch(format string, hosts, rows int, duration time.Duration, err error)

	// RecordStoredRows counts rows written to the database.
	RecordStoredRows(count int, err error)

	// RecordHTTPRequest records one served HTTP request.
	RecordHTTPRequest(method, path string, status int, duration time.Duration)

	// RecordScheduledRun counts one scheduled export.
	RecordScheduledRun(job string, err error)

	// Handler exposes the collected metrics over HTTP.
	Handler() http.Handler
}

// Ensure that PrometheusMetrics implements MetricsRegistry interface.
var _ MetricsRegistry = (*PrometheusMetrics)(nil)
