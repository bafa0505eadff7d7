package security

import (
	"sync"

	audit "provenance/pkg/platform/audit"
)

// RingBuffer holds security events between the publisher's Emit path and
// its flush loop. It is bounded: when full, the oldest event is overwritten
// so a stalled store can never block a login or push memory unbounded.
// Dropped counts the overwrites for the metrics gauge.
type RingBuffer struct {
	mu      sync.Mutex
	events  []audit.SecurityEvent
	read    int // oldest buffered event; write position is derived
	count   int
	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
// Non-positive capacities fall back to 10000.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		events: make([]audit.SecurityEvent, capacity),
	}
}

// Enqueue adds an event, overwriting the oldest one when full.
func (b *RingBuffer) Enqueue(event audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == len(b.events) {
		b.read = (b.read + 1) % len(b.events)
		b.count--
		b.dropped++
	}
	b.events[(b.read+b.count)%len(b.events)] = event
	b.count++
}

// DequeueBatch removes and returns up to n of the oldest events, or nil
// when the buffer is empty.
func (b *RingBuffer) DequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}

	out := make([]audit.SecurityEvent, n)
	first := copy(out, b.events[b.read:min(b.read+n, len(b.events))])
	copy(out[first:], b.events[:n-first])
	b.read = (b.read + n) % len(b.events)
	b.count -= n
	return out
}

// Len returns the number of buffered events.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns how many events have been overwritten in total.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
