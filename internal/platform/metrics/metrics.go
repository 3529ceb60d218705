// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeservice_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bikeservice_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthorizationDecisions counts kernel outcomes by result and reason.
	AuthorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeservice_authorization_decisions_total",
			Help: "Authorization kernel decisions",
		},
		[]string{"result", "reason"},
	)

	// Transitions counts persisted workflow transitions.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeservice_workflow_transitions_total",
			Help: "Persisted workflow state transitions",
		},
		[]string{"entity", "to"},
	)

	// SweepRows counts rows handled by the expiration sweeper by outcome.
	SweepRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeservice_sweep_rows_total",
			Help: "Rows processed by the expiration sweeper",
		},
		[]string{"kind", "outcome"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bikeservice_sweep_duration_seconds",
			Help:    "Duration of one expiration sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Middleware records request counts and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
