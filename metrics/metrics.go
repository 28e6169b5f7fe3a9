// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a store operation.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "docstore"
	subsystem = "api"

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve an HTTP request",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operations_total",
			Help:      "Total number of store operations by backend, operation and outcome",
		},
		[]string{"backend", "op", "outcome"},
	)

	storeDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operation_duration_milliseconds",
			Help:      "Time taken by a store operation (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
		[]string{"backend", "op"},
	)

	documentsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "documents_per_page",
			Help:      "Number of documents returned by a page fetch",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		},
		[]string{"backend"},
	)
)

// ObserveRequest records one served HTTP request. route is the matched
// route template, not the raw path.
func ObserveRequest(route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveStoreOp records the duration and outcome of a store call.
func ObserveStoreOp(backend, op, outcome string, d time.Duration) {
	storeOps.WithLabelValues(backend, op, outcome).Inc()
	storeDuration.WithLabelValues(backend, op).Observe(float64(d.Microseconds()) / 1000)
}

// ObservePageSize records how many documents a page fetch returned.
func ObservePageSize(backend string, n int) {
	documentsReturned.WithLabelValues(backend).Observe(float64(n))
}
