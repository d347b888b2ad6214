package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AggregationsTotal   *prometheus.CounterVec
	AggregationDuration prometheus.Histogram

	RecordsWritten   *prometheus.CounterVec
	StockWithdrawals *prometheus.CounterVec
	ReportsPublished *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Namespace string
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{Namespace: "broiler"}
}

// New creates and registers all collectors on a private registry.
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.AggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "cycle_aggregations_total",
			Help:      "Total number of cycle aggregations by outcome",
		},
		[]string{"status"},
	)

	m.AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "cycle_aggregation_duration_seconds",
			Help:      "Time spent folding one cycle's records",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	m.RecordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "records_written_total",
			Help:      "Total number of records added or updated per collection",
		},
		[]string{"collection"},
	)

	m.StockWithdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "inventory_withdrawals_total",
			Help:      "Total number of inventory withdrawals by result",
		},
		[]string{"result"},
	)

	m.ReportsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "cycle_reports_published_total",
			Help:      "Total number of cycle reports delivered per sink",
		},
		[]string{"sink", "status"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AggregationsTotal,
		m.AggregationDuration,
		m.RecordsWritten,
		m.StockWithdrawals,
		m.ReportsPublished,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveAggregation records one aggregation run.
func (m *Metrics) ObserveAggregation(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.AggregationsTotal.WithLabelValues(outcome(err)).Inc()
	m.AggregationDuration.Observe(duration.Seconds())
}

// RecordWrite counts a record written to a collection.
func (m *Metrics) RecordWrite(collection string) {
	if m == nil {
		return
	}
	m.RecordsWritten.WithLabelValues(collection).Inc()
}

// RecordWithdrawal counts an inventory withdrawal attempt.
func (m *Metrics) RecordWithdrawal(result string) {
	if m == nil {
		return
	}
	m.StockWithdrawals.WithLabelValues(result).Inc()
}

// RecordReportPublished counts a report delivery to a sink.
func (m *Metrics) RecordReportPublished(sink string, err error) {
	if m == nil {
		return
	}
	m.ReportsPublished.WithLabelValues(sink, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
