// Package httpx serves the operational endpoints of the storefront process.
package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 2 * time.Second

// Router wires the health and metrics endpoints.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	dbHealth func(context.Context) error
	registry *prometheus.Registry

	requestTotal     *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	connectionSource *prometheus.GaugeVec
}

// NewRouter assembles routes. dbHealth may be nil when no database is wired.
func NewRouter(logger *slog.Logger, dbHealth func(context.Context) error) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		dbHealth: dbHealth,
		registry: prometheus.NewRegistry(),
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	r.mux.HandleFunc("/", r.audit("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}))
}

type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthReport struct {
	Status     string                     `json:"status"`
	Components map[string]componentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// handleHealthz reports 503 when any wired dependency fails its probe.
func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report := healthReport{Status: "ok", Components: map[string]componentHealth{}}
	if r.dbHealth != nil {
		report.Components["database"] = probeComponent(req.Context(), r.dbHealth)
	}
	for _, c := range report.Components {
		if c.Status != "up" {
			report.Status = "degraded"
		}
	}
	report.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func probeComponent(ctx context.Context, check func(context.Context) error) componentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return componentHealth{Status: "down", Error: err.Error()}
	}
	return componentHealth{Status: "up"}
}

// audit records metrics for route and logs one line per request, at a level
// chosen by the response class.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		began := time.Now()
		next(rec, req)

		code := rec.code()
		elapsed := time.Since(began)
		r.recordRequestMetrics(req.Method, route, code, elapsed)

		log := r.logger.With("route", route)
		if id := strings.TrimSpace(req.Header.Get("X-Request-ID")); id != "" {
			log = log.With("request_id", id)
		}
		level := slog.LevelDebug
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if code >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		log.Log(req.Context(), level, "http_request",
			"method", req.Method,
			"status", code,
			"bytes", rec.bytes,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}
