package testutil

import "sync"

// DeterministicClock is an engine.SeqClock that a test can rewind, so the
// same scenario played twice on one clock stamps identical seq numbers.
type DeterministicClock struct {
	mu     sync.Mutex
	origin int64
	seq    int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt returns a clock whose first Next is origin+1.
// Reset rewinds it to origin.
func NewDeterministicClockAt(origin int64) *DeterministicClock {
	return &DeterministicClock{origin: origin, seq: origin}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	c.seq++
	n := c.seq
	c.mu.Unlock()
	return n
}

// Current is the last seq handed out, or the origin if none was.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	c.seq = c.origin
	c.mu.Unlock()
}
