package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	storeMutationsTotal *prometheus.CounterVec
	sessionsActive      prometheus.Gauge

	uploadRequestsTotal *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	uploadLatency       prometheus.Histogram

	analysisTotal   *prometheus.CounterVec
	analysisLatency prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_http_requests_total",
			Help: "Total number of grading API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_http_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_http_errors_total",
			Help: "Total number of error responses returned by grading endpoints.",
		}, []string{"method", "route", "status"})

		storeMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_store_mutations_total",
			Help: "Configuration store operations by name and outcome.",
		}, []string{"operation", "outcome"})

		sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grading_sessions_active",
			Help: "Number of mounted configuration sessions.",
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_upload_requests_total",
			Help: "Accepted document uploads by MIME type.",
		}, []string{"mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_upload_rejected_total",
			Help: "Rejected document uploads by reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_upload_latency_seconds",
			Help:    "Time spent validating and storing a document.",
			Buckets: prometheus.DefBuckets,
		})

		analysisTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_analysis_total",
			Help: "Analyze requests by outcome.",
		}, []string{"outcome"})

		analysisLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_analysis_latency_seconds",
			Help:    "End-to-end analyze latency including the grading backend.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			storeMutationsTotal, sessionsActive,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatency,
			analysisTotal, analysisLatency,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// StoreMutations counts configuration store operations.
func StoreMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return storeMutationsTotal
}

// SessionsActive tracks mounted sessions.
func SessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return sessionsActive
}

// UploadRequests counts accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency observes upload handling time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// AnalysisResults counts analyze outcomes.
func AnalysisResults() *prometheus.CounterVec {
	RegisterMetrics()
	return analysisTotal
}

// AnalysisLatency observes analyze duration.
func AnalysisLatency() prometheus.Histogram {
	RegisterMetrics()
	return analysisLatency
}
