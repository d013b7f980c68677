package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/ir"
)

func TestSignalQueue_FIFO(t *testing.T) {
	q := newSignalQueue()

	require.True(t, q.Enqueue(ActionSignal("A", ir.Start, nil)))
	require.True(t, q.Enqueue(KeySignal("RED", true)))
	require.True(t, q.Enqueue(PropertySignal("A", "volume", "10")))

	first, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, SignalAction, first.Kind)
	assert.Equal(t, "A", first.Target)

	rest := q.Drain()
	require.Len(t, rest, 2)
	assert.Equal(t, SignalKey, rest[0].Kind)
	assert.Equal(t, "RED", rest[0].Key)
	assert.Equal(t, SignalProperty, rest[1].Kind)
	assert.Equal(t, "10", rest[1].Value)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
	assert.Nil(t, q.Drain())
}

func TestSignalQueue_WaitSignalsAvailability(t *testing.T) {
	q := newSignalQueue()

	select {
	case <-q.Wait():
		t.Fatal("empty queue should not signal")
	default:
	}

	q.Enqueue(KeySignal("OK", true))
	q.Enqueue(KeySignal("OK", false))

	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("enqueue did not signal")
	}
	assert.Equal(t, 2, q.Len(), "signals coalesce, items do not")
}

func TestSignalQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newSignalQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(KeySignal("OK", true)))

	select {
	case _, open := <-q.Wait():
		assert.False(t, open)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("close did not wake waiters")
	}
}

func TestSignalQueue_ConcurrentProducers(t *testing.T) {
	q := newSignalQueue()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(PropertySignal("A", "n", fmt.Sprintf("%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	signals := q.Drain()
	assert.Len(t, signals, producers*perProducer)

	seen := make(map[string]bool, len(signals))
	for _, s := range signals {
		assert.False(t, seen[s.Value], "signal %s delivered twice", s.Value)
		seen[s.Value] = true
	}
}
