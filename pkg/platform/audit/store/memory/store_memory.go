// Package memory provides an in-memory audit store for publisher tests.
package memory

import (
	"context"
	"sync"

	id "provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
)

// InMemoryStore keeps audit events grouped by run, append order preserved
// within each run.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.RunID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.RunID][]audit.Event)}
}

// Append records the event under its run. Events without a run (security
// events such as login failures) group under the nil run ID.
func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RunID] = append(s.events[event.RunID], event)
	return nil
}

func (s *InMemoryStore) ListByRun(_ context.Context, runID id.RunID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[runID]...), nil
}

// ListAll flattens every run's events, in no particular run order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}
