// Package security provides a buffered, non-blocking audit publisher for
// security events.
//
// Publisher enqueues events into a bounded ring buffer and flushes them to
// the audit store from a background goroutine. Emit never blocks and never
// fails the caller: under sustained backpressure the oldest buffered events
// are dropped first, on the theory that the newest security signal is the
// most actionable one.
//
// Use for: reviewer_logged_in, reviewer_login_failed
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "provenance/pkg/platform/audit"
)

const (
	defaultBufferCapacity = 10000
	defaultFlushInterval  = time.Second
	defaultBatchSize      = 100
)

// Publisher emits security events asynchronously through a ring buffer.
type Publisher struct {
	store   audit.Store
	buffer  *RingBuffer
	logger  *slog.Logger
	metrics *Metrics

	flushInterval time.Duration
	batchSize     int

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for flush failures.
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

// WithBufferCapacity bounds the ring buffer. When full, the oldest events
// are dropped to admit new ones.
func WithBufferCapacity(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(capacity)
	}
}

// WithFlushInterval sets how often buffered events are written to the store.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithBatchSize caps how many events a single flush writes.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a security publisher and starts its flush loop.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		flushInterval: defaultFlushInterval,
		batchSize:     defaultBatchSize,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer == nil {
		p.buffer = NewRingBuffer(defaultBufferCapacity)
	}

	go p.flushLoop()

	return p
}

// Emit enqueues a security event. It never blocks; when the buffer is full
// the oldest event is evicted. The timestamp is set to now when unset and
// severity defaults to info.
func (p *Publisher) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}

	p.buffer.Enqueue(event)

	if p.metrics != nil {
		p.metrics.Enqueued.Inc()
		p.metrics.SetBufferSize(p.buffer.Len())
		p.metrics.SetDropped(p.buffer.Dropped())
	}
}

func (p *Publisher) flushLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.stop:
			// Final drain so Close loses nothing that made it into the buffer.
			for p.buffer.Len() > 0 {
				p.flush()
			}
			return
		}
	}
}

// flush writes one batch to the store. Events are persisted with a fresh
// context because the emitting requests are long gone.
func (p *Publisher) flush() {
	batch := p.buffer.DequeueBatch(p.batchSize)
	if len(batch) == 0 {
		return
	}

	ctx := context.Background()
	for _, event := range batch {
		if err := p.store.Append(ctx, event.Flatten()); err != nil {
			if p.metrics != nil {
				p.metrics.FlushFailures.Inc()
			}
			if p.logger != nil {
				p.logger.Error("security audit flush failed",
					"action", event.Action,
					"subject", event.Subject,
					"error", err,
				)
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.Flushed.Inc()
		}
	}

	if p.metrics != nil {
		p.metrics.SetBufferSize(p.buffer.Len())
	}
}

// Close stops the flush loop after draining the buffer.
// Safe to call multiple times.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
	})
	<-p.done
	return nil
}
