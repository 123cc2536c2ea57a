// Package metrics exposes Prometheus counters and histograms for the API,
// report generation, email delivery and the database pool. A nil *Metrics is
// valid and records nothing, so callers never check whether metrics are on.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`

	// Registry defaults to the global Prometheus registry
	Registry *prometheus.Registry `json:"-"`
}

// Metrics holds the registered collectors
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	reports        *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
	reportBytes    *prometheus.HistogramVec
	prints         *prometheus.CounterVec

	emails         *prometheus.CounterVec
	emailAttempts  *prometheus.CounterVec
	emailDuration  *prometheus.HistogramVec
	historyDeduped prometheus.Counter

	queryDuration *prometheus.HistogramVec
	errors        *prometheus.CounterVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewMetrics registers every collector. It returns nil when config is nil or
// disabled.
func NewMetrics(config *Config) *Metrics {
	if config == nil || !config.Enabled {
		return nil
	}

	m := &Metrics{registerer: prometheus.DefaultRegisterer, gatherer: prometheus.DefaultGatherer}
	if config.Registry != nil {
		m.registerer, m.gatherer = config.Registry, config.Registry
	}

	f := promauto.With(m.registerer)
	ns := config.Namespace
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets}, labels)
	}

	m.httpRequests = counter("http_requests_total", "API requests served", "method", "path", "status_code")
	m.httpDuration = histogram("http_request_duration_seconds", "API request latency", prometheus.DefBuckets, "method", "path")

	m.reports = counter("reports_total", "Report documents generated", "scope", "format", "status")
	m.reportDuration = histogram("report_duration_seconds", "Time to render one report document",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}, "scope", "format")
	m.reportBytes = histogram("report_size_bytes", "Size of generated report documents",
		prometheus.ExponentialBuckets(16*1024, 4, 8), "format")
	m.prints = counter("pdf_prints_total", "PDF print jobs by printer", "printer", "status")

	m.emails = counter("emails_total", "Report emails by outcome", "scope", "format", "status")
	m.emailAttempts = counter("email_attempts_total", "SMTP delivery attempts", "result")
	m.emailDuration = histogram("email_send_duration_seconds", "Report email send time including retries",
		[]float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60}, "status")
	m.historyDeduped = f.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "email_history_deduplicated_total",
		Help:      "History entries suppressed as near duplicates",
	})

	m.queryDuration = histogram("database_query_duration_seconds", "Repository query latency",
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}, "operation", "table")
	m.errors = counter("errors_total", "Errors by component and type", "component", "error_type")

	return m
}

// WatchDatabase exports the pool statistics of db at scrape time
func (m *Metrics) WatchDatabase(db *sql.DB, name string) {
	if m == nil || db == nil {
		return
	}
	// a second registration of the same pool is a no-op
	_ = m.registerer.Register(collectors.NewDBStatsCollector(db, name))
}

// RecordReport records one rendered document. size is skipped when zero.
func (m *Metrics) RecordReport(scope, format, status string, size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(scope, format, status).Inc()
	m.reportDuration.WithLabelValues(scope, format).Observe(duration.Seconds())
	if size > 0 {
		m.reportBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (m *Metrics) RecordPrint(printer, status string) {
	if m == nil {
		return
	}
	m.prints.WithLabelValues(printer, status).Inc()
}

// RecordEmail records the outcome of one send, retries included
func (m *Metrics) RecordEmail(scope, format, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(scope, format, status).Inc()
	m.emailDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordEmailAttempt(result string) {
	if m == nil {
		return
	}
	m.emailAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordHistoryDeduplicated() {
	if m == nil {
		return
	}
	m.historyDeduped.Inc()
}

func (m *Metrics) RecordDatabaseQuery(operation, table string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(component, errorType).Inc()
}

// PrometheusMiddleware counts API requests by route template
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
