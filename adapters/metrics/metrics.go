// Package metrics provides Prometheus metrics collection for the ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the service.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Admission metrics
	Admissions       prometheus.Counter
	RateLimitDenials *prometheus.CounterVec

	// Ledger metrics
	EventsRecorded *prometheus.CounterVec
	IngestDuration prometheus.Histogram

	// Rollup metrics
	RollupRuns     *prometheus.CounterVec
	RollupDuration prometheus.Histogram

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		// Request metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "usageledger",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "usageledger",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		// Auth metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),

		// Admission metrics
		Admissions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "admissions_total",
				Help:      "Total number of admitted billed calls",
			},
		),
		RateLimitDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "rate_limit_denials_total",
				Help:      "Total number of rate limit denials by window kind",
			},
			[]string{"kind"},
		),

		// Ledger metrics
		EventsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "events_recorded_total",
				Help:      "Total number of priced events appended to the ledger",
			},
			[]string{"model", "environment"},
		),
		IngestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "usageledger",
				Name:      "ingest_duration_seconds",
				Help:      "Event ingestion duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),

		// Rollup metrics
		RollupRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "rollup_runs_total",
				Help:      "Total number of rollup recomputations by outcome",
			},
			[]string{"status"},
		),
		RollupDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "usageledger",
				Name:      "rollup_duration_seconds",
				Help:      "Rollup recomputation duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		// Config metrics
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "usageledger",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "usageledger",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}
