package engine

import (
	"sync"

	"github.com/roach88/hyperplay/internal/ir"
)

// SignalKind distinguishes external inputs posted to a running engine.
type SignalKind int

const (
	// SignalAction requests a transition on a qualified event id.
	SignalAction SignalKind = iota + 1
	// SignalKey reports a key press or release.
	SignalKey
	// SignalProperty sets an object property.
	SignalProperty
)

// Signal is an external input queued for the next tick.
type Signal struct {
	Kind       SignalKind
	Target     string // qualified event id (action) or object id (property)
	Transition ir.Transition
	Params     Params
	Key        string
	Pressed    bool
	Name       string
	Value      string
}

// ActionSignal builds a SignalAction.
func ActionSignal(target string, tr ir.Transition, params Params) Signal {
	return Signal{Kind: SignalAction, Target: target, Transition: tr, Params: params}
}

// KeySignal builds a SignalKey.
func KeySignal(key string, pressed bool) Signal {
	return Signal{Kind: SignalKey, Key: key, Pressed: pressed}
}

// PropertySignal builds a SignalProperty.
func PropertySignal(object, name, value string) Signal {
	return Signal{Kind: SignalProperty, Target: object, Name: name, Value: value}
}

// signalQueue is a thread-safe FIFO queue for signals.
//
// Players and input devices run on their own goroutines; they enqueue and
// the engine drains on its tick. The queue is unbounded so posting never
// blocks a player.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type signalQueue struct {
	mu      sync.Mutex
	signals []Signal
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

func newSignalQueue() *signalQueue {
	return &signalQueue{
		signals: make([]Signal, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a signal to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *signalQueue) Enqueue(s Signal) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.signals = append(q.signals, s)

	// Non-blocking: buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Signal{}, false) if queue is empty.
func (q *signalQueue) TryDequeue() (Signal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.signals) == 0 {
		return Signal{}, false
	}

	s := q.signals[0]
	// Nil out the slot so the backing array does not retain Params.
	q.signals[0] = Signal{}
	if len(q.signals) == 1 {
		q.signals = q.signals[:0]
	} else {
		q.signals = q.signals[1:]
	}
	return s, true
}

// Drain removes and returns every queued signal in FIFO order.
func (q *signalQueue) Drain() []Signal {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.signals) == 0 {
		return nil
	}
	out := make([]Signal, len(q.signals))
	copy(out, q.signals)
	q.signals = make([]Signal, 0, cap(q.signals))
	return out
}

// Wait returns a channel that signals when signals may be available.
func (q *signalQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *signalQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.signals)
}

// Close stops accepting signals and wakes any waiters.
func (q *signalQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
