// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// sessionsCreatedTotal counts sessions registered via POST /api/v1/sessions.
	sessionsCreatedTotal prometheus.Counter

	// sessionsActive reports the number of sessions currently in the registry.
	sessionsActive prometheus.GaugeFunc

	// pipelineDurationSeconds records the wall-clock duration of full session
	// preparation runs, partitioned by outcome: "ok" or "error".
	pipelineDurationSeconds *prometheus.HistogramVec

	// evaluationsTotal counts completed evaluations, partitioned by outcome.
	evaluationsTotal *prometheus.CounterVec

	// evaluationDurationSeconds records the wall-clock duration of background
	// session evaluations.
	evaluationDurationSeconds prometheus.Histogram

	// httpRequestsTotal counts all API requests, partitioned by method,
	// handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all API requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default, which
// keeps unit tests hermetic. sessionCount backs the active-sessions gauge.
func newServerMetrics(reg prometheus.Registerer, sessionCount func() float64) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		sessionsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total number of interview sessions created.",
		}),

		sessionsActive: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "coach",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of sessions currently held in the registry.",
		}, sessionCount),

		pipelineDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coach",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of session preparation runs, partitioned by outcome.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		evaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "evaluations",
			Name:      "total",
			Help:      "Total number of interview evaluations, partitioned by outcome.",
		}, []string{"outcome"}),

		evaluationDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coach",
			Subsystem: "evaluations",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of session evaluations.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests handled, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coach",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}

// instrument wraps an API handler with request counting and latency
// measurement under the given logical handler name. Names, not raw paths,
// keep label cardinality bounded.
func (s *Server) instrument(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		h(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(elapsed.Seconds())
	})
}
