// Package web provides the HTTP API surface: ingestion, analytics,
// rollup administration, and operational endpoints.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/usageledger/adapters/clock"
	"github.com/artpar/usageledger/adapters/metrics"
	"github.com/artpar/usageledger/app"
	"github.com/artpar/usageledger/ports"
)

// Version is set at build time.
var Version = "dev"

// Handler provides the HTTP API endpoints.
type Handler struct {
	keys       *app.KeyService
	limiter    *app.LimiterService
	ingest     *app.IngestService
	analytics  *app.AnalyticsService
	aggregator *app.AggregatorService
	events     ports.EventStore
	clock      ports.Clock
	logger     zerolog.Logger
	metrics    *metrics.Collector
	startTime  time.Time
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Keys       *app.KeyService
	Limiter    *app.LimiterService
	Ingest     *app.IngestService
	Analytics  *app.AnalyticsService
	Aggregator *app.AggregatorService
	Events     ports.EventStore
	Clock      ports.Clock // optional, defaults to the system clock
	Logger     zerolog.Logger
	Metrics    *metrics.Collector // optional
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{
		keys:       deps.Keys,
		limiter:    deps.Limiter,
		ingest:     deps.Ingest,
		analytics:  deps.Analytics,
		aggregator: deps.Aggregator,
		events:     deps.Events,
		clock:      clk,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		startTime:  time.Now(),
	}
}

// RouterConfig carries optional router features.
type RouterConfig struct {
	MetricsEnabled bool
	MetricsPath    string
}

// Router builds the main HTTP router.
func (h *Handler) Router(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if h.metrics != nil {
		r.Use(h.metricsMiddleware())
	}

	// Operational endpoints (no auth required)
	r.Get("/healthz", h.Health)
	r.Get("/version", h.VersionInfo)
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	// Authenticated API
	r.Route("/v1", func(r chi.Router) {
		r.Use(h.authMiddleware)

		r.Post("/usage", h.RecordUsage)
		r.Get("/usage/events", h.ListEvents)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/daily-cost", h.DailyCost)
			r.Get("/by-model", h.CostByModel)
			r.Get("/by-endpoint", h.CostByEndpoint)
		})

		r.Post("/admin/rollups/{date}", h.TriggerRollup)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (h *Handler) loggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				return
			}

			h.logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// metricsMiddleware records request counts and latencies.
func (h *Handler) metricsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			h.metrics.RequestsInFlight.Inc()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			h.metrics.RequestsInFlight.Dec()

			if r.URL.Path == "/metrics" {
				return
			}

			status := statusClass(ww.Status())
			routePath := chi.RouteContext(r.Context()).RoutePattern()
			if routePath == "" {
				routePath = r.URL.Path
			}
			h.metrics.RequestsTotal.WithLabelValues(r.Method, routePath, status).Inc()
			h.metrics.RequestDuration.WithLabelValues(r.Method, routePath, status).
				Observe(time.Since(start).Seconds())
		})
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
