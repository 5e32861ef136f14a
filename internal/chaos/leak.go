// Package chaos implements the debug endpoints that deliberately put the
// process under memory, CPU and error pressure.
package chaos

import (
	"sync"
)

// LeakFiller is the value stored in every leaked entry.
const LeakFiller = "leak"

// LeakBuffer retains filler entries until Reset. Entries are never evicted.
type LeakBuffer struct {
	mu     sync.Mutex
	chunks [][]string
	total  int

	// onChange observes the entry count after every mutation
	onChange func(total int)
}

// NewLeakBuffer creates an empty buffer. onChange may be nil.
func NewLeakBuffer(onChange func(total int)) *LeakBuffer {
	return &LeakBuffer{onChange: onChange}
}

// Grow appends one chunk of n filler entries and returns the new total.
func (b *LeakBuffer) Grow(n int) int {
	if n <= 0 {
		return b.Len()
	}
	chunk := make([]string, n)
	for i := range chunk {
		chunk[i] = LeakFiller
	}

	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.total += n
	total := b.total
	if b.onChange != nil {
		b.onChange(total)
	}
	b.mu.Unlock()
	return total
}

// Reset drops every chunk. Calling it on an empty buffer is a no-op.
func (b *LeakBuffer) Reset() {
	b.mu.Lock()
	b.chunks = nil
	b.total = 0
	if b.onChange != nil {
		b.onChange(0)
	}
	b.mu.Unlock()
}

// Len returns the number of retained entries.
func (b *LeakBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Chunks returns the number of retained chunks.
func (b *LeakBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
