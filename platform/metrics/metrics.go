// Package metrics registers the Prometheus collectors shared by the service.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SagaOutcomes counts lifecycle transitions by operation and outcome.
	SagaOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_outcomes_total",
			Help: "Lead lifecycle operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// PartialFailures counts win sagas that created an order but could not
	// mark the lead as won.
	PartialFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_win_partial_failures_total",
			Help: "Win sagas left needing manual reconciliation",
		},
	)

	// BusyRejections counts operations rejected by the per-lead guard.
	BusyRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_busy_rejections_total",
			Help: "Operations rejected because another operation held the lead",
		},
		[]string{"operation"},
	)

	// LedgerMutations counts successful product ledger changes.
	LedgerMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_ledger_mutations_total",
			Help: "Successful product ledger mutations",
		},
		[]string{"operation"},
	)

	orderServiceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_service_request_duration_seconds",
			Help:    "Latency of CreateOrder calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveOrderService records a CreateOrder round trip.
func ObserveOrderService(d time.Duration) {
	orderServiceLatency.Observe(d.Seconds())
}

// Middleware records request counts and latency using the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
