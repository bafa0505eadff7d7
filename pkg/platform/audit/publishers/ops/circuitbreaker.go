package ops

import (
	"sync"
	"time"
)

// CircuitBreaker guards the audit store during outages. After enough
// consecutive append failures it opens and the tracker drops events instead
// of queueing writes behind a dead store. Once the cooldown elapses the next
// Allow closes the circuit and the following write probes the store.
//
// This breaker is time-based because ops events are droppable: there is no
// fallback to route to, so the only sensible reaction to an unhealthy store
// is to back off.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	failures int
	open     bool
	retryAt  time.Time
}

// NewCircuitBreaker creates a closed circuit breaker that opens after
// threshold consecutive failures and stays open for cooldown. Non-positive
// arguments fall back to 5 failures and one minute.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a write may proceed. An open circuit whose cooldown
// has elapsed closes here, so the caller's write doubles as the health probe.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if time.Now().Before(b.retryAt) {
		return false
	}

	b.open = false
	b.failures = 0
	return true
}

// RecordSuccess closes the circuit and clears the failure streak.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.open = false
}

// RecordFailure extends the failure streak and opens the circuit once it
// reaches the threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold {
		b.open = true
		b.retryAt = time.Now().Add(b.cooldown)
	}
}

// IsOpen reports whether the circuit is open.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
