package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Buyer operation counter
	BuyerOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_buyer_operations_total",
			Help: "Total number of buyer record operations",
		},
		[]string{"operation"}, // operation can be "create", "get", "update", "delete", "list", "export"
	)

	// Buyer error counter
	BuyerErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_buyer_errors_total",
			Help: "Total number of buyer operation errors",
		},
		[]string{"type"}, // type can be "validation", "not_found", "forbidden", "conflict", "db_error" etc.
	)

	// Import row counter
	ImportRowCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_import_rows_total",
			Help: "Total number of CSV import rows by outcome",
		},
		[]string{"outcome"}, // "imported" or "rejected"
	)

	// Import batch counter
	ImportBatchCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_import_batches_total",
			Help: "Total number of CSV import requests",
		},
	)

	// Demo login counter
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_demo_login_total",
			Help: "Total number of demo login attempts",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

func init() {
	prometheus.MustRegister(BuyerOperationCounter)
	prometheus.MustRegister(BuyerErrorCounter)
	prometheus.MustRegister(ImportRowCounter)
	prometheus.MustRegister(ImportBatchCounter)
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordBuyerOperation records a buyer operation by name
func RecordBuyerOperation(operation string) {
	BuyerOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordBuyerError records a buyer operation error by type
func RecordBuyerError(errorType string) {
	BuyerErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordImportRows records import row outcomes for one batch
func RecordImportRows(imported, rejected int) {
	ImportRowCounter.With(prometheus.Labels{"outcome": "imported"}).Add(float64(imported))
	ImportRowCounter.With(prometheus.Labels{"outcome": "rejected"}).Add(float64(rejected))
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}
