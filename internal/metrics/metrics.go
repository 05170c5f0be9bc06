// Package metrics exposes Prometheus collectors for solves, dataset loads,
// remote fetches, circuit breakers and API requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridlink_solves_total",
		Help: "Connection plan solves by outcome status",
	}, []string{"status"})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridlink_solve_duration_seconds",
		Help:    "Wall-clock time spent in the connection solver",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	datasetRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridlink_dataset_rows_total",
		Help: "Dataset rows read, by dataset and outcome (kept, filtered, skipped)",
	}, []string{"dataset", "outcome"})

	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridlink_fetch_total",
		Help: "Remote source fetches by host and outcome",
	}, []string{"host", "outcome"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridlink_circuit_breaker_state",
		Help: "Circuit breaker state by component (active state=1, others 0)",
	}, []string{"component", "state"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridlink_http_requests_total",
		Help: "HTTP API requests by method, route pattern and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridlink_http_request_duration_seconds",
		Help:    "HTTP API request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

var circuitStates = []string{"closed", "half-open", "open"}

// RecordSolve counts a finished solve and observes its duration.
func RecordSolve(status string, d time.Duration) {
	solvesTotal.WithLabelValues(status).Inc()
	solveDuration.Observe(d.Seconds())
}

// RecordDatasetRows adds n rows with the given outcome for a dataset.
func RecordDatasetRows(dataset, outcome string, n int) {
	if n <= 0 {
		return
	}
	datasetRows.WithLabelValues(dataset, outcome).Add(float64(n))
}

// RecordFetch counts a remote fetch against host.
func RecordFetch(host, outcome string) {
	fetchTotal.WithLabelValues(host, outcome).Inc()
}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordHTTPRequest counts an API request and observes its latency.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
