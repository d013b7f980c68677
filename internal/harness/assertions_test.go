package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/ir"
)

func rec(seq int64, event string, tr ir.Transition) ir.TransitionRecord {
	to := ir.Occurring
	from := ir.Sleeping
	if tr == ir.Stop {
		from, to = ir.Occurring, ir.Sleeping
	}
	return ir.TransitionRecord{Seq: seq, Event: event, Object: event, Type: ir.Presentation, Transition: tr, From: from, To: to}
}

func sampleTrace() []ir.TransitionRecord {
	return []ir.TransitionRecord{
		rec(1, "doc", ir.Start),
		rec(2, "a", ir.Start),
		rec(3, "b", ir.Start),
		rec(4, "a", ir.Stop),
		rec(5, "a", ir.Start),
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "a", Transition: "stop"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "b"}))

	err := assertTraceContains(trace, Assertion{Event: "b", Transition: "stop"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "b:stop", ae.Expected)
	assert.Contains(t, err.Error(), "[3] b start (sleeping -> occurring)")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"doc:start", "b:start", "a:stop"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"a", "a", "a"}}), "each entry consumes one record")

	err := assertTraceOrder(trace, Assertion{Events: []string{"a:stop", "b:start"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b:start (entry 1)")

	assert.Error(t, assertTraceOrder(trace, Assertion{Events: []string{"a", "a", "a", "a"}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "a", Transition: "start", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "a", Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "zzz", Count: 0}))

	err := assertTraceCount(trace, Assertion{Event: "b", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appears 1 times")
}

func TestAssertPlayerCalls(t *testing.T) {
	calls := []string{"a.prepare(0s)", "a.start", "b.start", "a.stop"}
	assert.NoError(t, assertPlayerCalls(calls, Assertion{Calls: []string{"a.start", "a.stop"}}))

	err := assertPlayerCalls(calls, Assertion{Calls: []string{"a.stop", "b.start"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.start missing")
}

func TestEvaluateAssertions_EngineStateNeedsContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertState, Event: "a", State: "sleeping"},
		{Type: AssertTraceCount, Event: "a", Count: 0},
		{Type: "mystery"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "requires engine context")
	assert.Contains(t, errs[1], "unknown assertion type")
}

func TestEvaluateAssertions_EngineState(t *testing.T) {
	scenario := &Scenario{
		Name:        "state",
		Description: "engine state assertions",
		Document:    minimalDocument,
		Steps:       []Step{{Start: true}},
		Assertions: []Assertion{
			{Type: AssertState, Event: "video", State: "paused"},
			{Type: AssertState, Event: "ghost", State: "sleeping"},
			{Type: AssertOccurrences, Event: "video", Count: 1},
			{Type: AssertProperty, Object: "video", Name: "volume", Value: "10"},
			{Type: AssertProperty, Object: "ghost", Name: "volume", Value: "10"},
			{Type: AssertFinished, Value: "true"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "Actual: occurring")
	assert.Contains(t, result.Errors[1], "event does not exist")
	assert.Contains(t, result.Errors[2], "occurred 0 times")
	assert.Contains(t, result.Errors[3], `Actual: ""`)
	assert.Contains(t, result.Errors[4], "UNRESOLVED_REFERENCE")
	assert.Contains(t, result.Errors[5], "finished = false")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: "state", Expected: "a is sleeping", Actual: "occurring"}
	assert.Equal(t, "Assertion failed: state\n  Expected: a is sleeping\n  Actual: occurring\n", err.Error())
}
