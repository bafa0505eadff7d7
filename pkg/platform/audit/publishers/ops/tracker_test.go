package ops

// Justification for unit tests: the ops tracker is the lossy tier of the
// audit pipeline, so the rules for when an event may be lost (sampling, open
// circuit, store failure) need to be pinned down. A store outage must never
// surface as an error to the operation that produced the event.

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/audit/store/memory"
)

// flakyStore fails Append while failing is set and counts every attempt.
type flakyStore struct {
	mu       sync.Mutex
	failing  bool
	attempts int
	inner    *memory.InMemoryStore
}

func newFlakyStore(failing bool) *flakyStore {
	return &flakyStore{failing: failing, inner: memory.NewInMemoryStore()}
}

func (f *flakyStore) Append(ctx context.Context, event audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failing {
		return errors.New("store down")
	}
	return f.inner.Append(ctx, event)
}

func (f *flakyStore) ListByRun(ctx context.Context, runID id.RunID) ([]audit.Event, error) {
	return f.inner.ListByRun(ctx, runID)
}

func (f *flakyStore) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *flakyStore) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func TestTracker_PersistsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := New(store)

	runID := id.RunID(uuid.New())
	tracker.Track(context.Background(), audit.OpsEvent{
		RunID:   runID,
		Subject: runID.String(),
		Action:  string(audit.EventCheckCompleted),
	})

	events, err := store.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventCheckCompleted), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp should be set")
}

func TestTracker_SamplesOut(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := New(store, WithSampler(NewSampler(0)))

	runID := id.RunID(uuid.New())
	for range 10 {
		tracker.Track(context.Background(), audit.OpsEvent{
			RunID:  runID,
			Action: string(audit.EventCheckCompleted),
		})
	}

	events, err := store.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Empty(t, events, "rate 0 should drop everything")
}

func TestTracker_PerActionRateOverridesDefault(t *testing.T) {
	store := memory.NewInMemoryStore()
	sampler := NewSampler(0)
	sampler.SetRate(string(audit.EventPlanRevised), 1.0)
	tracker := New(store, WithSampler(sampler))

	runID := id.RunID(uuid.New())
	tracker.Track(context.Background(), audit.OpsEvent{
		RunID:  runID,
		Action: string(audit.EventPlanRevised),
	})
	tracker.Track(context.Background(), audit.OpsEvent{
		RunID:  runID,
		Action: string(audit.EventCheckCompleted),
	})

	events, err := store.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventPlanRevised), events[0].Action)
}

func TestTracker_CircuitBreakerStopsHammering(t *testing.T) {
	store := newFlakyStore(true)
	tracker := New(store, WithCircuitBreaker(NewCircuitBreaker(2, time.Hour)))

	for range 5 {
		tracker.Track(context.Background(), audit.OpsEvent{
			RunID:  id.RunID(uuid.New()),
			Action: string(audit.EventCheckCompleted),
		})
	}

	// Two failures open the circuit; the remaining three never reach the store.
	assert.Equal(t, 2, store.attemptCount())
}

func TestTracker_CircuitBreakerRecovers(t *testing.T) {
	store := newFlakyStore(true)
	tracker := New(store, WithCircuitBreaker(NewCircuitBreaker(2, 10*time.Millisecond)))

	runID := id.RunID(uuid.New())
	for range 3 {
		tracker.Track(context.Background(), audit.OpsEvent{
			RunID:  runID,
			Action: string(audit.EventCheckCompleted),
		})
	}

	store.setFailing(false)
	time.Sleep(20 * time.Millisecond)

	tracker.Track(context.Background(), audit.OpsEvent{
		RunID:  runID,
		Action: string(audit.EventCheckCompleted),
	})

	events, err := store.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, events, 1, "tracker should resume after cooldown")
}

func TestTracker_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := New(store)

	runID := id.RunID(uuid.New())
	customTime := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	tracker.Track(context.Background(), audit.OpsEvent{
		RunID:     runID,
		Action:    string(audit.EventRunSuspended),
		Timestamp: customTime,
	})

	events, err := store.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}
