// This code was originally written by Rene Zbinden and modified by Vladimir Konovalov.
// Copied from https://github.com/766b/chi-prometheus and further adapted.

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	chi_middleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30}

const (
	reqsName    = "requests_total"
	latencyName = "request_duration_seconds"
)

// Prometheus exposes metrics for the number of requests and their latency,
// partitioned by status code, method and route pattern.
type Prometheus struct {
	reqs    *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func PrometheusMiddleware(name string, buckets ...float64) *Prometheus {
	var m Prometheus
	m.reqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        reqsName,
			Help:        "How many HTTP requests processed, partitioned by status code, method and HTTP path.",
			ConstLabels: prometheus.Labels{"service": name},
		},
		[]string{"code", "method", "path"},
	)

	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        latencyName,
		Help:        "How long it took to process the request, partitioned by status code, method and HTTP path.",
		ConstLabels: prometheus.Labels{"service": name},
		Buckets:     buckets,
	},
		[]string{"code", "method", "path"},
	)

	m.reqs = register(m.reqs).(*prometheus.CounterVec)
	m.latency = register(m.latency).(*prometheus.HistogramVec)

	return &m
}

// register returns the collector already registered under the same name, if any,
// so that several routers can share the metrics.
func register(c prometheus.Collector) prometheus.Collector {
	err := prometheus.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector
	}
	panic(err)
}

// Initialize creates the series for a path before it receives any traffic.
func (m *Prometheus) Initialize(path, method string, code int) {
	m.reqs.WithLabelValues(strconv.Itoa(code), method, path)
}

func (m *Prometheus) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chi_middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			statusCode := strconv.Itoa(ww.Status())
			path := routePattern(r)
			m.reqs.WithLabelValues(statusCode, r.Method, path).Inc()
			m.latency.WithLabelValues(statusCode, r.Method, path).Observe(time.Since(start).Seconds())
		}
		return http.HandlerFunc(fn)
	}
}

// routePattern keeps agent ids out of the label values.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if pattern := rctx.RoutePattern(); len(pattern) > 0 {
		return pattern
	}
	return r.URL.Path
}
