package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Middleware exposes request counts and latency partitioned by status code,
// method, and chi route pattern.
type Middleware struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMiddleware returns request collectors labelled with the service name.
// Call Collectors and register them before serving.
func NewMiddleware(service string) *Middleware {
	return &Middleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests partitioned by status code, method and route.",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"code", "method", "path"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency partitioned by status code, method and route.",
			ConstLabels: prometheus.Labels{"service": service},
			Buckets:     prometheus.DefBuckets,
		}, []string{"code", "method", "path"}),
	}
}

// Handler wraps next with request instrumentation.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		m.requests.WithLabelValues(code, r.Method, path).Inc()
		m.latency.WithLabelValues(code, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Collectors returns the middleware's collectors for registration.
func (m *Middleware) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.latency}
}
