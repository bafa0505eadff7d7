package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for compliance publishing. Emit failures
// already surface to callers as errors; the counter exists so a burst of
// them is visible without log digging.
type Metrics struct {
	// Events persisted to the outbox
	Emitted prometheus.Counter

	// Store append failures
	PersistFailures prometheus.Counter

	// Synchronous write latency
	PersistDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all compliance publisher
// metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_compliance_emitted_total",
			Help: "Compliance audit events persisted to the outbox",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_compliance_persist_failures_total",
			Help: "Compliance audit store append failures",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "provenance_audit_compliance_persist_duration_seconds",
			Help:    "Latency of synchronous compliance audit writes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
