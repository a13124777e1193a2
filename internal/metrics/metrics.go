package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ledger and alerting collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ledger metrics
	Mutations        *prometheus.CounterVec
	VersionConflicts *prometheus.CounterVec
	ProblemsDetected *prometheus.CounterVec

	// Alert dispatch metrics
	AlertDispatches *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec

	// Scanner metrics
	ScanRuns     *prometheus.CounterVec
	ScanDuration prometheus.Histogram
	ScanRecords  *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{Namespace: "liquor_inventory"}
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

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

	m.Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_mutations_total",
			Help:      "Stock ledger mutations by operation and result",
		},
		[]string{"operation", "result"},
	)

	m.VersionConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_version_conflicts_total",
			Help:      "Compare-and-swap conflicts on ledger appends",
		},
		[]string{"operation"},
	)

	m.ProblemsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "problems_detected_total",
			Help:      "Problems raised by stock mutations and expiration scans",
		},
		[]string{"type", "severity"},
	)

	m.AlertDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "alert_dispatches_total",
			Help:      "Alert dispatch attempts by handler and result",
		},
		[]string{"handler", "result"},
	)

	m.BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.ScanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "expiration_scan_runs_total",
			Help:      "Expiration scan runs by result",
		},
		[]string{"result"},
	)

	m.ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "expiration_scan_duration_seconds",
			Help:      "Expiration scan duration in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		},
	)

	m.ScanRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "expiration_scan_records_total",
			Help:      "Records visited by expiration scans by outcome",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.Mutations,
		m.VersionConflicts,
		m.ProblemsDetected,
		m.AlertDispatches,
		m.BreakerState,
		m.ScanRuns,
		m.ScanDuration,
		m.ScanRecords,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, result(err == nil)).Inc()
}

func (m *Metrics) RecordVersionConflict(operation string) {
	if m == nil {
		return
	}
	m.VersionConflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordProblem(problemType, severity string) {
	if m == nil {
		return
	}
	m.ProblemsDetected.WithLabelValues(problemType, severity).Inc()
}

func (m *Metrics) RecordDispatch(handler string, success bool) {
	if m == nil {
		return
	}
	m.AlertDispatches.WithLabelValues(handler, result(success)).Inc()
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordScan records one expiration scan run and its per-record outcomes
func (m *Metrics) RecordScan(success bool, duration time.Duration, raised, suppressed, failed int) {
	if m == nil {
		return
	}
	m.ScanRuns.WithLabelValues(result(success)).Inc()
	m.ScanDuration.Observe(duration.Seconds())
	m.ScanRecords.WithLabelValues("raised").Add(float64(raised))
	m.ScanRecords.WithLabelValues("suppressed").Add(float64(suppressed))
	m.ScanRecords.WithLabelValues("failed").Add(float64(failed))
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
