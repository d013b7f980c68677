package engine

import "sync/atomic"

// SeqClock hands out the seq numbers stamped on transition records.
// Implemented by Clock and by the resettable test clock in testutil.
type SeqClock interface {
	Next() int64
}

// Clock is a monotonic logical clock for transition records.
//
// Every accepted transition is stamped with a strictly increasing seq
// number. Traces are ordered by seq, never by wall-clock time, so a
// replay of the same inputs produces the same trace.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to continue a recorded session.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
