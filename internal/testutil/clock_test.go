package testutil

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/engine"
	"github.com/roach88/hyperplay/internal/ir"
)

var _ engine.SeqClock = (*DeterministicClock)(nil)

func TestDeterministicClockSequence(t *testing.T) {
	c := NewDeterministicClock()
	assert.Equal(t, int64(0), c.Current())

	var got []int64
	for i := 0; i < 4; i++ {
		got = append(got, c.Next())
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, got)
	assert.Equal(t, int64(4), c.Current())

	c.Reset()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
}

func TestDeterministicClockAtOrigin(t *testing.T) {
	c := NewDeterministicClockAt(41)
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, int64(43), c.Next())

	c.Reset()
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
}

func TestDeterministicClockConcurrentNextIsGapless(t *testing.T) {
	const workers, perWorker = 32, 250
	c := NewDeterministicClock()

	var (
		mu   sync.Mutex
		seen []int64
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, c.Next())
			}
			mu.Lock()
			seen = append(seen, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	for i, v := range seen {
		require.Equal(t, int64(i+1), v)
	}
}

func TestDeterministicClockStampsEngineRecords(t *testing.T) {
	c := NewDeterministicClock()
	var seqs []int64
	observer := engine.ObserverFunc(func(rec ir.TransitionRecord) { seqs = append(seqs, rec.Seq) })

	for run := 0; run < 2; run++ {
		c.Reset()
		seqs = nil
		e := engine.New(recordingDocument(t), engine.WithClock(c), engine.WithObserver(observer))
		_, err := e.Start()
		require.NoError(t, err)
		_, err = e.PostAction("A", ir.Start, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, seqs, "run %d", run)
	}
}
