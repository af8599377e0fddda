package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/api/middleware"
	"github.com/aquilhq/actionlog/pkg/health"
	"github.com/aquilhq/actionlog/pkg/ops"
)

// Deps carries everything the router serves. Reader, Reconciler and the
// Prometheus registry may be nil; the matching endpoints degrade.
type Deps struct {
	Writer     ActionWriter
	Reader     LogReader
	Reconciler ReconcileRunner
	Counters   CounterSource
	Health     *health.Reporter
	Chain      *ops.Chain
	PromReg    *prometheus.Registry

	// AdminJWTSecret guards /api/v1/admin. Empty = open (dev mode).
	AdminJWTSecret string
}

// NewRouter builds the chi router: base middleware, health probes,
// Prometheus exposition, and the versioned API wrapped by the ops
// admission chain.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	h := &handlers{deps: deps}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", h.liveness)
		r.Get("/ready", h.readiness)
		r.Get("/stores", h.stores)
	})

	if deps.PromReg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.PromReg, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Chain != nil {
			r.Use(deps.Chain.Middleware)
		}

		r.Post("/actions", h.postAction)
		r.Get("/logs", h.listLogs)
		r.Get("/logs/{id}", h.getLog)
		r.Get("/search", h.search)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminJWT(deps.AdminJWTSecret))
			r.Post("/reconcile", h.reconcile)
			r.Get("/metrics", h.counterSnapshot)
		})
	})

	// Root redirect to liveness for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health/live", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs request start at DEBUG and completion at INFO.
// Health and metrics probes complete at DEBUG: they fire every few
// seconds and would drown the log.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		logFn := logger.Info
		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
			logFn = logger.Debug
		}

		logFn("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}
