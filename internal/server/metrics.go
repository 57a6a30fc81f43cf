package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Compile outcomes used as the outcome label.
const (
	outcomeOK       = "ok"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

var (
	compileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_compile_total",
		Help: "Total number of compile requests by outcome.",
	}, []string{"outcome"})

	compileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tessera_compile_duration_seconds",
		Help:    "Duration of component compiles.",
		Buckets: prometheus.DefBuckets,
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"path", "method", "status"})
)

// metricsMiddleware counts requests by route pattern and status.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		httpRequests.WithLabelValues(path, r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}

func observeCompile(outcome string, start time.Time) {
	compileTotal.WithLabelValues(outcome).Inc()
	if outcome != outcomeRejected {
		compileDuration.Observe(time.Since(start).Seconds())
	}
}
