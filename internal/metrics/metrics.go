// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcpgate_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpgate_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	upstreamRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_upstream_refresh_total",
			Help: "Upstream credential refresh attempts by result.",
		},
		[]string{"result"},
	)

	tokenExchangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_token_exchange_total",
			Help: "Authorization code exchanges by result.",
		},
		[]string{"result"},
	)

	identityResolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_identity_resolution_total",
			Help: "Request identity resolutions by source.",
		},
		[]string{"source"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			upstreamRefreshTotal,
			tokenExchangeTotal,
			identityResolutionTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// UpstreamRefresh counts one refresh attempt ("success" or "failure").
func UpstreamRefresh(result string) {
	upstreamRefreshTotal.WithLabelValues(result).Inc()
}

// TokenExchange counts one /token outcome.
func TokenExchange(result string) {
	tokenExchangeTotal.WithLabelValues(result).Inc()
}

// IdentityResolved counts the extractor that produced a request identity ("none" when absent).
func IdentityResolved(source string) {
	identityResolutionTotal.WithLabelValues(source).Inc()
}

// Instrument records request count, latency and in-flight gauge for next.
// route is a fixed label so that path parameters do not explode cardinality.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
