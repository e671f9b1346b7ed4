package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	requestsTotal       *prometheus.CounterVec
	latencySeconds      *prometheus.HistogramVec
	errorsTotal         *prometheus.CounterVec
	realtimeConnections prometheus.Gauge
	pollSubmissions     prometheus.Counter
	snapshotsPublished  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kita_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kita_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kita_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kita_realtime_connections",
			Help: "Number of currently connected realtime clients.",
		})

		pollSubmissions = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kita_poll_submissions_total",
			Help: "Number of poll answers merged into active polls.",
		})

		snapshotsPublished = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kita_snapshots_published_total",
			Help: "Number of room snapshots fanned out to subscribers.",
		})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal, realtimeConnections, pollSubmissions, snapshotsPublished)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// RealtimeConnections exposes the gauge for live websocket clients.
func RealtimeConnections() prometheus.Gauge {
	RegisterMetrics()
	return realtimeConnections
}

// PollSubmissions exposes the counter for merged poll answers.
func PollSubmissions() prometheus.Counter {
	RegisterMetrics()
	return pollSubmissions
}

// SnapshotsPublished exposes the counter for fanned-out room snapshots.
func SnapshotsPublished() prometheus.Counter {
	RegisterMetrics()
	return snapshotsPublished
}
