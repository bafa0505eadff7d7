package worker

// Justification for unit tests: the outbox worker is the only bridge between
// the transactional outbox and Kafka. Losing an entry or publishing out of
// order would silently corrupt the audit trail, so the drain loop's ordering,
// batching and failure behavior are pinned down against stubs here. The full
// path through PostgreSQL and a real broker is covered by integration tests.

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "provenance/pkg/platform/audit"
)

type stubOutbox struct {
	mu        sync.Mutex
	pending   []audit.OutboxEntry
	published []uuid.UUID
	batchErr  error
}

func (s *stubOutbox) NextBatch(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	batch := make([]audit.OutboxEntry, limit)
	copy(batch, s.pending[:limit])
	return batch, nil
}

func (s *stubOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, ids...)
	for _, id := range ids {
		for i, entry := range s.pending {
			if entry.ID == id {
				// Rebuild rather than delete in place: s.pending shares its
				// backing array with the caller's entries slice, and an
				// in-place delete would shift the caller's elements too.
				s.pending = append(append([]audit.OutboxEntry(nil), s.pending[:i]...), s.pending[i+1:]...)
				break
			}
		}
	}
	return nil
}

type publishedMessage struct {
	topic string
	key   string
	value string
}

type stubProducer struct {
	mu       sync.Mutex
	messages []publishedMessage
	failKeys map[uuid.UUID]bool
}

func (p *stubProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, err := uuid.Parse(string(key)); err == nil && p.failKeys[id] {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, publishedMessage{topic: topic, key: string(key), value: string(value)})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(action string) audit.OutboxEntry {
	return audit.OutboxEntry{
		ID:        uuid.New(),
		Action:    action,
		Payload:   []byte(`{"Action":"` + action + `"}`),
		CreatedAt: time.Now(),
	}
}

func TestWorker_DrainPublishesToCategoryTopics(t *testing.T) {
	entries := []audit.OutboxEntry{
		entry(string(audit.EventRunCompleted)),
		entry(string(audit.EventReviewerLoggedIn)),
		entry(string(audit.EventCheckCompleted)),
	}
	store := &stubOutbox{pending: entries}
	producer := &stubProducer{}
	w := NewWorker(store, producer, discardLogger())

	require.NoError(t, w.DrainOnce(context.Background()))

	require.Len(t, producer.messages, 3)
	assert.Equal(t, audit.TopicCompliance, producer.messages[0].topic)
	assert.Equal(t, audit.TopicSecurity, producer.messages[1].topic)
	assert.Equal(t, audit.TopicOps, producer.messages[2].topic)

	// Kafka key is the event ID so consumers can dedupe.
	assert.Equal(t, entries[0].ID.String(), producer.messages[0].key)

	require.Len(t, store.published, 3)
	assert.Empty(t, store.pending, "drained entries should be marked published")
}

func TestWorker_StopsAtFirstPublishFailure(t *testing.T) {
	entries := []audit.OutboxEntry{
		entry(string(audit.EventRunStarted)),
		entry(string(audit.EventRunCompleted)),
		entry(string(audit.EventRunAborted)),
	}
	store := &stubOutbox{pending: entries}
	producer := &stubProducer{failKeys: map[uuid.UUID]bool{entries[1].ID: true}}
	w := NewWorker(store, producer, discardLogger())

	err := w.DrainOnce(context.Background())
	require.Error(t, err)

	// Only the prefix before the failure is published and marked; the failed
	// entry and everything after it stay pending for the next tick.
	require.Len(t, producer.messages, 1)
	assert.Equal(t, []uuid.UUID{entries[0].ID}, store.published)
	require.Len(t, store.pending, 2)
	assert.Equal(t, entries[1].ID, store.pending[0].ID)
}

func TestWorker_DrainsBacklogAcrossBatches(t *testing.T) {
	var entries []audit.OutboxEntry
	for range 5 {
		entries = append(entries, entry(string(audit.EventCheckCompleted)))
	}
	store := &stubOutbox{pending: entries}
	producer := &stubProducer{}
	w := NewWorker(store, producer, discardLogger(), WithBatchSize(2))

	require.NoError(t, w.DrainOnce(context.Background()))

	assert.Len(t, producer.messages, 5)
	assert.Empty(t, store.pending)
}

func TestWorker_NextBatchErrorSurfaces(t *testing.T) {
	store := &stubOutbox{batchErr: errors.New("connection refused")}
	w := NewWorker(store, &stubProducer{}, discardLogger())

	err := w.DrainOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next outbox batch")
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	store := &stubOutbox{}
	w := NewWorker(store, &stubProducer{}, discardLogger(), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
