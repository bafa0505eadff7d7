// Package ops provides a fire-and-forget audit tracker for operational events.
//
// Tracker emits ops events with best-effort semantics: events may be sampled
// down, and a circuit breaker stops persistence attempts while the store is
// unhealthy. Track never returns an error - a dropped ops event must not fail
// the operation that produced it.
//
// Use for: run_started, run_suspended, check_completed, plan_revised
package ops

import (
	"context"
	"log/slog"
	"time"

	audit "provenance/pkg/platform/audit"
)

// Tracker emits operational audit events with sampling and circuit breaking.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithSampler sets the event sampler.
func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		t.sampler = s
	}
}

// WithCircuitBreaker sets the circuit breaker guarding the store.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) {
		t.breaker = cb
	}
}

// WithLogger sets a logger for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// New creates an ops tracker. Without options it keeps every event
// (sample rate 1.0) and opens the circuit after 5 consecutive store
// failures for a one minute cooldown.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store: store,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sampler == nil {
		t.sampler = NewSampler(1.0)
	}
	if t.breaker == nil {
		t.breaker = NewCircuitBreaker(5, time.Minute)
	}
	return t
}

// Track records an operational event, best effort. Events lost to sampling,
// an open circuit, or a store failure are counted in metrics but never
// surface as errors to the caller.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.Sampled.Inc()
		}
		return
	}

	if !t.breaker.Allow() {
		if t.metrics != nil {
			t.metrics.BreakerDropped.Inc()
			t.metrics.SetBreakerOpen(true)
		}
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := t.store.Append(ctx, event.Flatten()); err != nil {
		t.breaker.RecordFailure()
		if t.metrics != nil {
			t.metrics.PersistFailures.Inc()
			t.metrics.SetBreakerOpen(t.breaker.IsOpen())
		}
		if t.logger != nil {
			t.logger.WarnContext(ctx, "ops audit dropped",
				"action", event.Action,
				"run_id", event.RunID,
				"error", err,
			)
		}
		return
	}

	t.breaker.RecordSuccess()
	if t.metrics != nil {
		t.metrics.Tracked.Inc()
		t.metrics.SetBreakerOpen(false)
	}
}

// Close is a no-op for the synchronous ops tracker.
func (t *Tracker) Close() error {
	return nil
}
