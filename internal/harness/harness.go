package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/hyperplay/internal/compiler"
	"github.com/roach88/hyperplay/internal/engine"
	"github.com/roach88/hyperplay/internal/ir"
	"github.com/roach88/hyperplay/internal/store"
	"github.com/roach88/hyperplay/internal/testutil"
)

// Harness is the test execution engine.
// It plays one scenario against a real engine with a deterministic clock,
// a fixed session id and recording players.
type Harness struct {
	engine  *engine.Engine
	players *testutil.RecordingFactory
	logger  *slog.Logger
	elapsed time.Duration
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Compile and validate the scenario's document
// 2. Create fresh in-memory database and a session recorder
// 3. Execute steps, checking each step's expectation
// 4. Read the trace back from the store and evaluate assertions
//
// Returned errors are infrastructure failures (bad document, store
// failures). Step and assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with step progress logged to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	doc, err := compiler.CompileSource(scenario.Name+".cue", []byte(scenario.Document))
	if err != nil {
		return nil, fmt.Errorf("failed to compile document: %w", err)
	}
	if errs := compiler.Validate(doc); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid document:\n  %s", strings.Join(msgs, "\n  "))
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	sessionID := testutil.NewFixedSessionGenerator(scenario.Session).Generate()
	sess, err := store.NewSession(sessionID, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	rec, err := store.NewRecorder(ctx, st, sess)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	players := testutil.NewRecordingFactory()
	opts := []engine.Option{
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithPlayerFactory(players),
		engine.WithObserver(rec),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}

	h := &Harness{
		engine:  engine.New(doc, opts...),
		players: players,
		logger:  logger,
	}

	result := NewResult()
	result.SessionID = sessionID
	h.executeSteps(scenario.Steps, result)

	hash, err := rec.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}
	trace, err := st.ReadTransitions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = trace
	result.TraceHash = hash
	result.PlayerCalls = players.Calls()

	actx := &AssertionContext{Engine: h.engine, Players: players}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeSteps runs the steps in order. The first step that misses its
// expectation is reported and stops execution, since later steps would
// run against an engine in an unexpected state.
func (h *Harness) executeSteps(steps []Step, result *Result) {
	for i, step := range steps {
		applied, err := h.execute(step)
		if msg := checkExpect(step.Expect, applied, err); msg != "" {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, describeStep(step), msg))
			return
		}
		h.logger.Info("step completed",
			"step", i,
			"call", describeStep(step),
			"applied", applied,
			"time", h.engine.Now(),
		)
	}
}

// execute performs one driver call. The applied count is -1 for calls
// that do not run a propagation.
func (h *Harness) execute(step Step) (int, error) {
	switch {
	case step.Start:
		return h.engine.Start()
	case step.Action != nil:
		tr, err := ir.ParseTransition(step.Action.Transition)
		if err != nil {
			return 0, err
		}
		return h.engine.PostAction(step.Action.Target, tr, engine.Params(step.Action.Params))
	case step.Tick != "":
		diff, err := time.ParseDuration(step.Tick)
		if err != nil {
			return -1, err
		}
		h.elapsed += diff
		return -1, h.engine.Tick(h.elapsed, diff)
	case step.Key != nil:
		return h.engine.PostKey(step.Key.Key, !step.Key.Release)
	case step.Set != nil:
		var dur time.Duration
		if step.Set.Duration != "" {
			d, err := ir.ParseTime(step.Set.Duration)
			if err != nil {
				return -1, err
			}
			dur = d
		}
		return -1, h.engine.SetProperty(step.Set.Object, step.Set.Property, step.Set.Value, dur)
	case step.Reselect != "":
		return -1, h.engine.Reselect(step.Reselect)
	case step.Finish != "":
		p := h.players.Player(step.Finish)
		if p == nil {
			return -1, fmt.Errorf("no player for media %q", step.Finish)
		}
		p.Finish()
		return -1, nil
	}
	return -1, fmt.Errorf("empty step")
}

// checkExpect compares a step outcome with its expectation and returns
// a failure message, or "" if the outcome matches.
func checkExpect(expect *StepExpect, applied int, err error) string {
	if expect == nil {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	}
	if expect.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error containing %q, got success", expect.Error)
		}
		if !strings.Contains(err.Error(), expect.Error) {
			return fmt.Sprintf("expected error containing %q, got %q", expect.Error, err.Error())
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	if expect.Applied != nil && *expect.Applied != applied {
		return fmt.Sprintf("expected %d applied transitions, got %d", *expect.Applied, applied)
	}
	return ""
}

// describeStep renders a step for error messages and logs.
func describeStep(s Step) string {
	switch {
	case s.Start:
		return "start"
	case s.Action != nil:
		return fmt.Sprintf("action %s %s", s.Action.Transition, s.Action.Target)
	case s.Tick != "":
		return "tick " + s.Tick
	case s.Key != nil:
		if s.Key.Release {
			return "release " + s.Key.Key
		}
		return "key " + s.Key.Key
	case s.Set != nil:
		return fmt.Sprintf("set %s.%s=%s", s.Set.Object, s.Set.Property, s.Set.Value)
	case s.Reselect != "":
		return "reselect " + s.Reselect
	case s.Finish != "":
		return "finish " + s.Finish
	}
	return "empty"
}
