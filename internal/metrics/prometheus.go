package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of calls failed or rejected by a circuit breaker",
		},
		[]string{"service", "circuit_name"},
	)

	// SubmissionsTotal counts finished order submissions by outcome
	// (success, success_with_warnings, aborted, failed).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_submissions_total",
			Help: "Total number of order submissions by outcome",
		},
		[]string{"outcome"},
	)

	// StepWarningsTotal counts degraded post-commit steps.
	StepWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_step_warnings_total",
			Help: "Total number of post-commit steps that completed with a warning",
		},
		[]string{"step"},
	)

	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_anomalies_total",
			Help: "Total number of orders flagged for manual reconciliation",
		},
		[]string{"anomaly"},
	)

	ProductionEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "production_requests_enqueued_total",
			Help: "Total number of production requests enqueued",
		},
		[]string{"driver"},
	)

	StockValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_validations_total",
			Help: "Total number of stock validations by verdict",
		},
		[]string{"verdict"},
	)
)

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()

		RequestDuration.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}
