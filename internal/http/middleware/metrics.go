// Prometheus instrumentation for HTTP traffic.
//
// Series are labeled by surface (public, admin, ui, ops), method, the
// registered Gin route and status. Requests that match no route share the
// "unmatched" route label so requests for random URLs cannot grow the series
// count.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "hesapla"
	unmatchedPath    = "unmatched"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by surface, method, route and status.",
		},
		[]string{"surface", "method", "route", "status"},
	)

	// Status is left out to keep the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"surface", "method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_inflight",
			Help:      "HTTP requests currently being served.",
		},
	)

	// Bodies range from a 304 to the admin UI bundle.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response body size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"surface", "method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// MetricsOptions configures Metrics.
type MetricsOptions struct {
	// SkipPaths lists raw URL paths that are not instrumented (e.g. /metrics).
	SkipPaths []string
}

// Metrics records hesapla_http_* series for every request not in SkipPaths.
//
//	r.Use(middleware.Metrics(middleware.MetricsOptions{SkipPaths: []string{"/metrics"}}))
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics(opts MetricsOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedPath
		}
		surface := surfaceOf(route)
		method := c.Request.Method

		httpReqs.WithLabelValues(surface, method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(surface, method, route).Observe(time.Since(start).Seconds())
		// -1 means nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(surface, method, route).Observe(float64(size))
		}
	}
}

// surfaceOf maps a route to the part of the product it serves.
func surfaceOf(route string) string {
	switch {
	case strings.HasPrefix(route, "/api/admin"):
		return "admin"
	case strings.HasPrefix(route, "/api/"):
		return "public"
	case strings.HasPrefix(route, "/admin"):
		return "ui"
	default:
		return "ops"
	}
}
