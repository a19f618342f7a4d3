package eventlog

import (
	"context"
	"sync"
)

// RingBuffer is a bounded in-memory Store. Once full, the oldest event is
// overwritten. Safe for concurrent use.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewRingBuffer creates a buffer holding at most size events.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{events: make([]Event, size)}
}

// Append implements Store.
func (r *RingBuffer) Append(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = event
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Recent implements Store. A non-positive limit returns everything buffered.
func (r *RingBuffer) Recent(_ context.Context, limit int) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + len(r.events)) % len(r.events)
		out = append(out, r.events[idx])
	}
	return out, nil
}

// Len is the number of buffered events.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

// Cap is the maximum number of buffered events.
func (r *RingBuffer) Cap() int {
	return len(r.events)
}

func (r *RingBuffer) lenLocked() int {
	if r.full {
		return len(r.events)
	}
	return r.next
}
