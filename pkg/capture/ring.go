package capture

import (
	"sync"

	"github.com/powerlab/wattlog/pkg/types"
)

// Ring is a fixed-capacity sample buffer that evicts the oldest entry to
// admit a new one. It backs the live chart: one writer (the capture loop)
// and any number of concurrent snapshot readers.
type Ring struct {
	mu   sync.RWMutex
	buf  []types.Sample
	next int
	full bool
}

// NewRing returns a ring buffer holding the most recent capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	return &Ring{buf: make([]types.Sample, capacity)}
}

// Push inserts s, evicting the oldest sample if the buffer is full.
func (r *Ring) Push(s types.Sample) {
	r.mu.Lock()
	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Snapshot returns a copy of the buffered samples in arrival order. It is
// never a live view, so readers cannot observe a torn buffer.
func (r *Ring) Snapshot() []types.Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]types.Sample, r.next)
		copy(out, r.buf[:r.next])
		return out
	}

	out := make([]types.Sample, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

// Len reports the number of buffered samples.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Cap reports the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
