package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the security publisher. Emit never
// reports errors to callers, so eviction and flush failure counts here are
// the only signal that events are being lost.
type Metrics struct {
	// Events accepted into the ring buffer
	Enqueued prometheus.Counter

	// Events persisted by the flush loop
	Flushed prometheus.Counter

	// Store append failures during flush
	FlushFailures prometheus.Counter

	// Ring buffer evictions since startup
	Dropped prometheus.Gauge

	// Events currently waiting to be flushed
	BufferSize prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all security publisher
// metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_security_enqueued_total",
			Help: "Security audit events accepted into the buffer",
		}),
		Flushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_security_flushed_total",
			Help: "Security audit events persisted to the store",
		}),
		FlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_audit_security_flush_failures_total",
			Help: "Security audit events that failed to persist",
		}),
		Dropped: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "provenance_audit_security_dropped_total",
			Help: "Security audit events evicted from the buffer",
		}),
		BufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "provenance_audit_security_buffer_size",
			Help: "Security audit events waiting to be flushed",
		}),
	}
}

// SetDropped mirrors the ring buffer's eviction count.
func (m *Metrics) SetDropped(n int64) {
	m.Dropped.Set(float64(n))
}

// SetBufferSize records the current buffer depth.
func (m *Metrics) SetBufferSize(n int) {
	m.BufferSize.Set(float64(n))
}
