package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	apiRequestsTotal          *prometheus.CounterVec
	apiLatencySeconds         *prometheus.HistogramVec
	apiErrorsTotal            *prometheus.CounterVec
	evaluationsFinalizedTotal *prometheus.CounterVec
	rubricOperationsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the scoring workflow.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		evaluationsFinalizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluations_finalized_total",
			Help: "Evaluations transitioned to completed, by score tier.",
		}, []string{"tier"})

		rubricOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubric_operations_total",
			Help: "Rubric write operations, by operation.",
		}, []string{"operation"})

		prometheus.MustRegister(apiRequestsTotal, apiLatencySeconds, apiErrorsTotal, evaluationsFinalizedTotal, rubricOperationsTotal)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluationsFinalized exposes the finalize counter.
func EvaluationsFinalized() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsFinalizedTotal
}

// RubricOperations exposes the rubric write counter.
func RubricOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return rubricOperationsTotal
}
