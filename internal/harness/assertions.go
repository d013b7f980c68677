package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/hyperplay/internal/engine"
	"github.com/roach88/hyperplay/internal/ir"
	"github.com/roach88/hyperplay/internal/testutil"
)

// AssertionContext provides access to final engine state for state,
// occurrences, property, finished and player_calls assertions.
type AssertionContext struct {
	Engine  *engine.Engine
	Players *testutil.RecordingFactory
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string                // Assertion type for categorization
	Expected string                // Human-readable expected outcome
	Actual   string                // Human-readable actual outcome
	Trace    []ir.TransitionRecord // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, rec := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s (%s -> %s)\n", rec.Seq, rec.Event, rec.Transition, rec.From, rec.To)
		}
	}

	return buf.String()
}

// matches reports whether a record is the given event transition. An
// empty transition matches any.
func matches(rec ir.TransitionRecord, event, transition string) bool {
	if rec.Event != event {
		return false
	}
	return transition == "" || rec.Transition.String() == transition
}

func describeEvent(event, transition string) string {
	if transition == "" {
		return event
	}
	return event + ":" + transition
}

// assertTraceContains checks if the trace contains a transition of the
// given event.
func assertTraceContains(trace []ir.TransitionRecord, assertion Assertion) error {
	for _, rec := range trace {
		if matches(rec, assertion.Event, assertion.Transition) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeEvent(assertion.Event, assertion.Transition),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if event transitions appear in the specified
// order. They don't need to be consecutive (intervening records are
// allowed) and each entry matches a record after the previous match.
func assertTraceOrder(trace []ir.TransitionRecord, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Events {
		event, transition, _ := strings.Cut(want, ":")
		found := false
		for pos < len(trace) {
			rec := trace[pos]
			pos++
			if matches(rec, event, transition) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: strings.Join(assertion.Events, " -> "),
				Actual:   fmt.Sprintf("%s (entry %d) not found after the preceding entries", want, i),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if an event transition appears exactly N times.
func assertTraceCount(trace []ir.TransitionRecord, assertion Assertion) error {
	count := 0
	for _, rec := range trace {
		if matches(rec, assertion.Event, assertion.Transition) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times", describeEvent(assertion.Event, assertion.Transition), assertion.Count),
			Actual:   fmt.Sprintf("appears %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertState checks an event's final state.
func assertState(eng *engine.Engine, assertion Assertion) error {
	ev, ok := eng.Event(assertion.Event)
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s is %s", assertion.Event, assertion.State),
			Actual:   "event does not exist",
		}
	}
	if got := ev.State().String(); got != assertion.State {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s is %s", assertion.Event, assertion.State),
			Actual:   got,
		}
	}
	return nil
}

// assertOccurrences checks how many times an event completed.
func assertOccurrences(eng *engine.Engine, assertion Assertion) error {
	ev, ok := eng.Event(assertion.Event)
	if !ok {
		return &AssertionError{
			Type:     AssertOccurrences,
			Expected: fmt.Sprintf("%s occurred %d times", assertion.Event, assertion.Count),
			Actual:   "event does not exist",
		}
	}
	if ev.Occurrences() != assertion.Count {
		return &AssertionError{
			Type:     AssertOccurrences,
			Expected: fmt.Sprintf("%s occurred %d times", assertion.Event, assertion.Count),
			Actual:   fmt.Sprintf("occurred %d times", ev.Occurrences()),
		}
	}
	return nil
}

// assertProperty checks an object's property value.
func assertProperty(eng *engine.Engine, assertion Assertion) error {
	expected := fmt.Sprintf("%s.%s = %q", assertion.Object, assertion.Name, assertion.Value)
	got, err := eng.Property(assertion.Object, assertion.Name)
	if err != nil {
		return &AssertionError{Type: AssertProperty, Expected: expected, Actual: err.Error()}
	}
	if got != assertion.Value {
		return &AssertionError{Type: AssertProperty, Expected: expected, Actual: strconv.Quote(got)}
	}
	return nil
}

// assertFinished checks whether the document ended.
func assertFinished(eng *engine.Engine, assertion Assertion) error {
	want := assertion.Value == "true"
	if eng.Finished() != want {
		return &AssertionError{
			Type:     AssertFinished,
			Expected: fmt.Sprintf("finished = %t", want),
			Actual:   fmt.Sprintf("finished = %t", eng.Finished()),
		}
	}
	return nil
}

// assertPlayerCalls checks that the expected calls appear in the player
// log in order, not necessarily consecutively.
func assertPlayerCalls(calls []string, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Calls {
		found := false
		for pos < len(calls) {
			got := calls[pos]
			pos++
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertPlayerCalls,
				Expected: strings.Join(assertion.Calls, ", "),
				Actual:   fmt.Sprintf("%s missing from [%s]", want, strings.Join(calls, ", ")),
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides engine access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertPlayerCalls:
			err = assertPlayerCalls(result.PlayerCalls, assertion)
		case AssertState, AssertOccurrences, AssertProperty, AssertFinished:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertState:
				err = assertState(actx.Engine, assertion)
			case AssertOccurrences:
				err = assertOccurrences(actx.Engine, assertion)
			case AssertProperty:
				err = assertProperty(actx.Engine, assertion)
			case AssertFinished:
				err = assertFinished(actx.Engine, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
