package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the consent ledger API.
type Metrics struct {
	ConsentsCaptured     *prometheus.CounterVec
	ConsentsRevoked      *prometheus.CounterVec
	OperationErrors      *prometheus.CounterVec
	CorruptStateDetected prometheus.Counter

	// Performance metrics
	RequestLatency *prometheus.HistogramVec
}

// New registers the collectors on reg and returns them. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConsentsCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_ledger_consents_captured_total",
			Help: "Total number of consents captured, labeled by consent type and whether a predecessor was superseded",
		}, []string{"consent_type", "superseding"}),
		ConsentsRevoked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_ledger_consents_revoked_total",
			Help: "Total number of consents revoked, labeled by consent type and actor (subject or admin)",
		}, []string{"consent_type", "actor"}),
		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_ledger_operation_errors_total",
			Help: "Total number of failed ledger operations, labeled by operation and error kind",
		}, []string{"operation", "kind"}),
		CorruptStateDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "consent_ledger_corrupt_state_total",
			Help: "Total number of stored invariant violations detected while reading",
		}),

		// Performance metrics
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consent_ledger_request_latency_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementConsentsCaptured(consentType string, superseding bool) {
	label := "false"
	if superseding {
		label = "true"
	}
	m.ConsentsCaptured.WithLabelValues(consentType, label).Inc()
}

func (m *Metrics) IncrementConsentsRevoked(consentType string, byAdmin bool) {
	actor := "subject"
	if byAdmin {
		actor = "admin"
	}
	m.ConsentsRevoked.WithLabelValues(consentType, actor).Inc()
}

// IncrementOperationErrors counts a failed operation. Corrupt state is also
// counted on its own collector so it can be alerted on directly.
func (m *Metrics) IncrementOperationErrors(operation, kind string) {
	m.OperationErrors.WithLabelValues(operation, kind).Inc()
	if kind == "corrupt_state" {
		m.CorruptStateDetected.Inc()
	}
}

// ObserveRequestLatency records the latency of one HTTP request.
func (m *Metrics) ObserveRequestLatency(method, route, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(method, route, status).Observe(durationSeconds)
}
