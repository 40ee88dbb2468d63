// Package metrics provides Prometheus instrumentation for the tender gateway.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tenderbid"

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BoundaryCallsTotal counts contract calls by ABI method and result.
	BoundaryCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_calls_total",
			Help:      "Contract calls by ABI method and result (ok, rejected, unavailable, error).",
		},
		[]string{"method", "result"},
	)

	// BoundaryCallDuration observes contract call latency, including the
	// mining wait for transactions.
	BoundaryCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "boundary_call_duration_seconds",
			Help:      "Contract call duration in seconds, mining wait included.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	// OperationsTotal counts session operations by kind and final state.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Session operations by kind and final state (confirmed, failed).",
		},
		[]string{"kind", "state"},
	)

	// OperationsInFlight tracks session operations still submitting.
	OperationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Session operations currently in the submitting state.",
		},
	)

	// MalformedPayloadsTotal counts getBids entries dropped during decoding.
	MalformedPayloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_payloads_total",
			Help:      "Bid entries skipped because a payload failed to decode, by field.",
		},
		[]string{"field"},
	)

	// BidsDecoded tracks the size of the most recently rebuilt ledger.
	BidsDecoded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bids_decoded",
			Help:      "Number of bids in the most recently rebuilt ledger.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BoundaryCallsTotal,
		BoundaryCallDuration,
		OperationsTotal,
		OperationsInFlight,
		MalformedPayloadsTotal,
		BidsDecoded,
	)
}

// ObserveBoundaryCall records one contract call.
func ObserveBoundaryCall(method, result string, started time.Time) {
	BoundaryCallsTotal.WithLabelValues(method, result).Inc()
	BoundaryCallDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern keeps cardinality bounded
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
