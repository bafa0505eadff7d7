// Package worker drains the audit outbox into Kafka.
//
// The outbox pattern makes audit writes transactional with the business
// operation that caused them: the store appends an outbox row in the same
// transaction, and this worker publishes unpublished rows to the category
// topic afterwards. Entries are published oldest first and only marked
// published after the broker acknowledges them, so a crash between publish
// and mark can only duplicate an event, never lose one. Consumers insert
// with ON CONFLICT DO NOTHING keyed on the event ID, which absorbs the
// duplicates.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "provenance/pkg/platform/audit"
)

const (
	defaultInterval  = 500 * time.Millisecond
	defaultBatchSize = 100
)

// OutboxStore supplies unpublished outbox entries and records publication.
type OutboxStore interface {
	NextBatch(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes a message to a Kafka topic.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Worker polls the outbox and relays entries to Kafka.
type Worker struct {
	store    OutboxStore
	producer Producer
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

// Option configures the Worker.
type Option func(*Worker)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBatchSize caps how many entries one drain pass publishes.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// NewWorker creates an outbox worker.
func NewWorker(store OutboxStore, producer Producer, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		producer:  producer,
		logger:    logger,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until the context is cancelled. Publish failures are logged and
// retried on the next tick; they do not stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// DrainOnce publishes pending outbox entries until the backlog is empty or
// a publish fails. Entries are relayed in creation order, and publication
// stops at the first failure so order is preserved on retry.
func (w *Worker) DrainOnce(ctx context.Context) error {
	for {
		entries, err := w.store.NextBatch(ctx, w.batchSize)
		if err != nil {
			return fmt.Errorf("next outbox batch: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		published := make([]uuid.UUID, 0, len(entries))
		var publishErr error
		for _, entry := range entries {
			err := w.producer.Publish(ctx, entry.Topic(), []byte(entry.ID.String()), entry.Payload)
			if err != nil {
				publishErr = fmt.Errorf("publish outbox entry %s: %w", entry.ID, err)
				break
			}
			published = append(published, entry.ID)
		}

		if len(published) > 0 {
			if err := w.store.MarkPublished(ctx, published); err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
		}
		if publishErr != nil {
			return publishErr
		}
		if len(entries) < w.batchSize {
			return nil
		}
	}
}
