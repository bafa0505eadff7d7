// Package compliance provides the fail-closed audit publisher for
// regulator-visible events.
//
// Emit writes synchronously to the outbox and returns the store's error to
// the caller. A run completion, abort, review decision, or risk assessment
// that cannot be audited must not take effect, so callers propagate this
// error instead of logging past it.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "provenance/pkg/platform/audit"
)

// Publisher writes compliance events synchronously to the audit store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher. The store must be outbox-backed so a
// successful Emit means the event will reach Kafka.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists one compliance event, blocking until the write lands. The
// returned error is fail-closed: callers must abort their operation on it.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if event.RunID.IsNil() {
		return fmt.Errorf("compliance event missing RunID")
	}
	if event.Action == "" {
		return fmt.Errorf("compliance event missing Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	start := time.Now()
	if err := p.store.Append(ctx, event.Flatten()); err != nil {
		if p.metrics != nil {
			p.metrics.PersistFailures.Inc()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit write failed",
				"action", event.Action,
				"run_id", event.RunID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		p.metrics.Emitted.Inc()
	}
	return nil
}

// Close is a no-op; Emit holds no background state.
func (p *Publisher) Close() error {
	return nil
}
