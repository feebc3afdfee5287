package ubidots

import (
	"github.com/temoto/ubidots/log2"
)

const DefaultCapacity = 5

// ReadingBuffer is fixed capacity ordered staging area for readings.
// When full, Add replaces the last slot so the newest reading is never lost
// and count stays at capacity.
type ReadingBuffer struct {
	items []Reading
	n     int
	log   *log2.Log
}

func NewReadingBuffer(capacity int, log *log2.Log) *ReadingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ReadingBuffer{
		items: make([]Reading, capacity),
		log:   log,
	}
}

// Add returns true when buffer was full and last reading got replaced.
func (b *ReadingBuffer) Add(r Reading) bool {
	if b.n == len(b.items) {
		last := &b.items[len(b.items)-1]
		b.log.Infof("warning: ubidots buffer full capacity=%d, label=%s replaces label=%s", len(b.items), r.Label, last.Label)
		*last = r
		return true
	}
	b.items[b.n] = r
	b.n++
	return false
}

// Drain returns staged readings in insertion order and empties the buffer.
func (b *ReadingBuffer) Drain() []Reading {
	out := make([]Reading, b.n)
	copy(out, b.items[:b.n])
	for i := 0; i < b.n; i++ {
		b.items[i] = Reading{}
	}
	b.n = 0
	return out
}

// Requeue puts rs back before currently staged readings.
// Overflow follows Add rule: first cap-1 kept, newest takes the last slot.
// Returns number of dropped readings.
func (b *ReadingBuffer) Requeue(rs []Reading) int {
	if len(rs) == 0 {
		return 0
	}
	merged := make([]Reading, 0, len(rs)+b.n)
	merged = append(merged, rs...)
	merged = append(merged, b.items[:b.n]...)
	dropped := 0
	if c := len(b.items); len(merged) > c {
		dropped = len(merged) - c
		newest := merged[len(merged)-1]
		merged = merged[:c]
		merged[c-1] = newest
	}
	b.n = copy(b.items, merged)
	return dropped
}

func (b *ReadingBuffer) Len() int      { return b.n }
func (b *ReadingBuffer) Cap() int      { return len(b.items) }
func (b *ReadingBuffer) IsEmpty() bool { return b.n == 0 }
