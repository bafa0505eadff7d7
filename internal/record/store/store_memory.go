// Package store provides VerificationRecord persistence. The memory store
// backs unit tests and local development; the postgres store is the durable
// backend.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	id "provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"

	"provenance/internal/record"
)

// MemoryStore holds records as serialized JSON documents. Serializing on
// every write keeps the memory store byte-faithful to the durable one:
// anything that would not survive a postgres round-trip does not survive
// here either.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[id.RunID][]byte
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[id.RunID][]byte)}
}

// Create stores a new record. Returns sentinel.ErrConflict if the run
// already exists.
func (s *MemoryStore) Create(_ context.Context, rec *record.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[rec.RunID]; ok {
		return sentinel.ErrConflict
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.docs[rec.RunID] = doc
	return nil
}

// Get loads a record. Returns sentinel.ErrNotFound when absent.
func (s *MemoryStore) Get(_ context.Context, runID id.RunID) (*record.VerificationRecord, error) {
	s.mu.RLock()
	doc, ok := s.docs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var rec record.VerificationRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save persists the current state of an existing record.
func (s *MemoryStore) Save(_ context.Context, rec *record.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[rec.RunID]; !ok {
		return sentinel.ErrNotFound
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.docs[rec.RunID] = doc
	return nil
}

// ListActiveRunIDs returns the ids of runs that have neither aborted nor
// produced a risk assessment, oldest first.
func (s *MemoryStore) ListActiveRunIDs(ctx context.Context) ([]id.RunID, error) {
	s.mu.RLock()
	runIDs := make([]id.RunID, 0, len(s.docs))
	for runID := range s.docs {
		runIDs = append(runIDs, runID)
	}
	s.mu.RUnlock()

	type activeRun struct {
		runID     id.RunID
		createdAt time.Time
	}
	var active []activeRun
	for _, runID := range runIDs {
		rec, err := s.Get(ctx, runID)
		if err != nil {
			return nil, err
		}
		if rec.Aborted || rec.RiskAssessment != nil {
			continue
		}
		active = append(active, activeRun{runID: rec.RunID, createdAt: rec.CreatedAt})
	}

	sort.Slice(active, func(i, j int) bool {
		if !active[i].createdAt.Equal(active[j].createdAt) {
			return active[i].createdAt.Before(active[j].createdAt)
		}
		return active[i].runID.String() < active[j].runID.String()
	})

	ids := make([]id.RunID, len(active))
	for i, a := range active {
		ids[i] = a.runID
	}
	return ids, nil
}

// ListOpenReviews returns every pending review item across all runs, in
// request order within each run.
func (s *MemoryStore) ListOpenReviews(ctx context.Context) ([]record.QueuedReview, error) {
	s.mu.RLock()
	runIDs := make([]id.RunID, 0, len(s.docs))
	for runID := range s.docs {
		runIDs = append(runIDs, runID)
	}
	s.mu.RUnlock()

	var open []record.QueuedReview
	for _, runID := range runIDs {
		rec, err := s.Get(ctx, runID)
		if err != nil {
			return nil, err
		}
		for _, item := range rec.UnresolvedReviews() {
			open = append(open, record.QueuedReview{RunID: rec.RunID, ReviewItem: item})
		}
	}

	// Oldest request first, run id as a deterministic tie-break.
	sort.Slice(open, func(i, j int) bool {
		if !open[i].RequestedAt.Equal(open[j].RequestedAt) {
			return open[i].RequestedAt.Before(open[j].RequestedAt)
		}
		return open[i].RunID.String() < open[j].RunID.String()
	})
	return open, nil
}
