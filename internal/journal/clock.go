package journal

import "sync/atomic"

// Clock is a monotonic logical clock for event ordering.
//
// Every journal event is stamped with a strictly increasing seq from one
// Clock, so ordering is explicit and replay-stable; wall-clock time never
// participates. A fresh Recorder gets a fresh Clock, which is what makes
// scenario traces deterministic.
//
// Thread-safety: safe for concurrent use (atomic operations), though the
// engine contract means a single logical thread normally drives it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
