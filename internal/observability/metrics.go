package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts served requests by method, chi route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogspace_http_requests_total",
		Help: "Total number of HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration records request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blogspace_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blogspace_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheErrors counts Redis errors by command name. redis.Nil is not an error.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogspace_cache_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// CacheLookups counts category cache lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogspace_cache_lookups_total",
		Help: "Category cache lookups by result",
	}, []string{"result"})

	// PostEvents counts successful post writes by action (created, updated, deleted).
	PostEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogspace_post_events_total",
		Help: "Successful post mutations by action",
	}, []string{"action"})

	// CommentsCreated counts stored comments.
	CommentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogspace_comments_created_total",
		Help: "Total number of comments stored",
	})

	// AccessDenials counts rejected post operations by operation and reason
	// (unauthenticated, forbidden).
	AccessDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogspace_access_denials_total",
		Help: "Post operations rejected by the authorization policy",
	}, []string{"operation", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
