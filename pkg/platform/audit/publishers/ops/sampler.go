package ops

import (
	"math/rand/v2"
	"sync"
)

// Sampler decides which ops events are kept. Run lifecycle events can be
// chatty (every check completion emits one), so operators tune a base keep
// rate and override it per action.
type Sampler struct {
	mu        sync.RWMutex
	base      float64
	overrides map[string]float64
}

// NewSampler creates a sampler keeping the given fraction of events.
// The rate is clamped to [0, 1].
func NewSampler(rate float64) *Sampler {
	return &Sampler{
		base:      clamp01(rate),
		overrides: make(map[string]float64),
	}
}

// ShouldSample reports whether an event with this action should be kept.
func (s *Sampler) ShouldSample(action string) bool {
	s.mu.RLock()
	rate, ok := s.overrides[action]
	if !ok {
		rate = s.base
	}
	s.mu.RUnlock()

	return rand.Float64() < rate //nolint:gosec // statistical sampling, not security
}

// SetRate overrides the keep rate for one action. Use it to thin out a
// high-volume action without touching the base rate.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[action] = clamp01(rate)
}

func clamp01(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	default:
		return rate
	}
}
