package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ops tracker. Because Track never
// returns errors, these counters are the only way to see events being lost.
type Metrics struct {
	// Events persisted to the audit store
	Tracked prometheus.Counter

	// Events dropped by the sampler
	Sampled prometheus.Counter

	// Events dropped because the store breaker was open
	BreakerDropped prometheus.Counter

	// Store append failures
	PersistFailures prometheus.Counter

	// 1 while the store breaker is open
	BreakerOpen prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all ops tracker metrics
// registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Tracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_ops_tracked_total",
			Help: "Ops audit events persisted to the store",
		}),
		Sampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_ops_sampled_out_total",
			Help: "Ops audit events dropped by the sampler",
		}),
		BreakerDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_ops_breaker_dropped_total",
			Help: "Ops audit events dropped while the store breaker was open",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_ops_persist_failures_total",
			Help: "Ops audit store append failures",
		}),
		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "provenance_audit_ops_breaker_open",
			Help: "Whether the audit store breaker is open (1) or closed (0)",
		}),
	}
}

// SetBreakerOpen records the breaker state on the gauge.
func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
