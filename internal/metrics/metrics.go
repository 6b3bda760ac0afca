// Package metrics provides Prometheus metrics for the file browser.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route label used for requests that did not match a registered route, which
// is where files are served.
const fileRoute = "file"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filenav_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filenav_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	pathFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filenav_path_fallbacks_total",
			Help: "Requested directories rejected and replaced by the root",
		},
	)

	listingEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filenav_listing_entries",
			Help:    "Number of entries rendered per directory listing",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	filesServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filenav_files_served_total",
			Help: "File requests by outcome",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPathFallback counts a rejected directory request.
func RecordPathFallback() {
	pathFallbacksTotal.Inc()
}

// RecordListing records the size of a rendered listing.
func RecordListing(entries int) {
	listingEntries.Observe(float64(entries))
}

// RecordFileServed records a file request by the HTTP status it ended with.
func RecordFileServed(status int) {
	filesServedTotal.WithLabelValues(fileOutcome(status)).Inc()
}

func fileOutcome(status int) string {
	switch {
	case status < http.StatusBadRequest:
		return "success"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusForbidden:
		return "forbidden"
	case status < http.StatusInternalServerError:
		return "rejected"
	default:
		return "error"
	}
}

// Middleware returns gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = fileRoute
		}
		RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
