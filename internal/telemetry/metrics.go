package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fez_requests_total",
				Help: "Total number of Fez API requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fez_request_duration_seconds",
				Help:    "Fez API request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ProviderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fez_provider_errors_total",
				Help: "Total Fez API errors by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fez_submissions_total",
				Help: "Order submissions by path and outcome",
			},
			[]string{"path", "outcome"},
		),
	}
}

// ObserveRequest records a provider request.
func (m *Metrics) ObserveRequest(operation, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveProviderError records a provider error.
func (m *Metrics) ObserveProviderError(operation, kind string) {
	m.ProviderErrors.WithLabelValues(operation, kind).Inc()
}

// ObserveSubmission records an order submission outcome.
func (m *Metrics) ObserveSubmission(path, outcome string) {
	m.Submissions.WithLabelValues(path, outcome).Inc()
}
