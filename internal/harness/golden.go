package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hyperplay/internal/ir"
)

// GoldenDir holds the trace snapshots, relative to the test's package.
// Run the tests with -update to rewrite them.
const GoldenDir = "testdata/golden"

// TraceSnapshot is what a golden file stores for one scenario: its name,
// the session it recorded under and the full trace, as canonical JSON.
type TraceSnapshot struct {
	ScenarioName string                `json:"scenario_name"`
	Session      string                `json:"session"`
	Trace        []ir.TransitionRecord `json:"trace"`
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	records := make([]any, 0, len(s.Trace))
	for _, rec := range s.Trace {
		records = append(records, rec.Canonical())
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"session":       s.Session,
		"trace":         records,
	}
}

// RunWithGolden plays scenario and checks its trace against
// GoldenDir/<name>.golden.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden checks an existing result against the golden file for name.
// A mismatch fails t; the returned error only reports encoding problems.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	snap := TraceSnapshot{ScenarioName: name, Session: result.SessionID, Trace: result.Trace}
	data, err := ir.MarshalCanonical(snap.toCanonicalMap())
	if err != nil {
		return err
	}
	goldie.New(t, goldie.WithFixtureDir(GoldenDir), goldie.WithNameSuffix(".golden")).Assert(t, name, data)
	return nil
}
