package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hyperplay/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario plays a document through a list of driver steps and asserts
// on the resulting transition trace and final engine state.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is inline CUE source with a top-level document field.
	Document string `yaml:"document,omitempty"`

	// DocumentFile is a CUE file holding the document, relative to the
	// scenario file. Exactly one of Document and DocumentFile is set.
	DocumentFile string `yaml:"document_file,omitempty"`

	// Session is an optional fixed session id for deterministic traces.
	// If empty, defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// MaxSteps overrides the per-propagation step quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Steps drive the engine in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one driver call. Exactly one of the call fields is set.
type Step struct {
	// Start instantiates the root and starts its lambda.
	Start bool `yaml:"start,omitempty"`

	// Action posts a transition on an event.
	Action *ActionStep `yaml:"action,omitempty"`

	// Tick advances engine time by a duration ("40ms", "10s").
	Tick string `yaml:"tick,omitempty"`

	// Key presses or releases a key.
	Key *KeyStep `yaml:"key,omitempty"`

	// Set assigns a property.
	Set *SetStep `yaml:"set,omitempty"`

	// Reselect re-evaluates a switch's rules.
	Reselect string `yaml:"reselect,omitempty"`

	// Finish makes a media player report the natural end of its content.
	Finish string `yaml:"finish,omitempty"`

	// Expect checks the outcome of this step. If nil, the step must
	// succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// ActionStep posts a transition on a qualified event id.
type ActionStep struct {
	Target     string            `yaml:"target"`
	Transition string            `yaml:"transition"`
	Params     map[string]string `yaml:"params,omitempty"`
}

// KeyStep presses (or releases) a key.
type KeyStep struct {
	Key     string `yaml:"key"`
	Release bool   `yaml:"release,omitempty"`
}

// SetStep assigns object.property = value, animated over duration.
type SetStep struct {
	Object   string `yaml:"object"`
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
	Duration string `yaml:"duration,omitempty"`
}

// StepExpect specifies the expected step outcome.
type StepExpect struct {
	// Applied is the number of transitions the step's propagation
	// accepted. Only meaningful for start, action and key steps.
	Applied *int `yaml:"applied,omitempty"`

	// Error is a substring the step's error must contain. The step must
	// fail when set.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an event transition appears in the trace
	// - "trace_order": Check event transitions appear in order
	// - "trace_count": Check an event transition appears exactly N times
	// - "state": Check an event's final state
	// - "occurrences": Check an event's occurrence count
	// - "property": Check an object's property value
	// - "finished": Check whether the document finished
	// - "player_calls": Check player calls appear in order
	Type string `yaml:"type"`

	// Event is a qualified event id (trace_*, state, occurrences).
	Event string `yaml:"event,omitempty"`

	// Transition filters trace assertions; empty matches any transition.
	Transition string `yaml:"transition,omitempty"`

	// Events is the expected order as "event:transition" (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number (trace_count, occurrences).
	Count int `yaml:"count,omitempty"`

	// State is the expected event state (state).
	State string `yaml:"state,omitempty"`

	// Object and Name select a property (property).
	Object string `yaml:"object,omitempty"`
	Name   string `yaml:"name,omitempty"`

	// Value is the expected property value, or "true"/"false" (finished).
	Value string `yaml:"value,omitempty"`

	// Calls is the expected player call order (player_calls).
	Calls []string `yaml:"calls,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertState         = "state"
	AssertOccurrences   = "occurrences"
	AssertProperty      = "property"
	AssertFinished      = "finished"
	AssertPlayerCalls   = "player_calls"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A document_file is resolved relative to the scenario's directory and
// inlined, so the returned scenario is self-contained.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.DocumentFile != "" {
		if scenario.Document != "" {
			return nil, fmt.Errorf("invalid scenario: document and document_file are mutually exclusive")
		}
		docPath := scenario.DocumentFile
		if !filepath.IsAbs(docPath) {
			docPath = filepath.Join(filepath.Dir(path), docPath)
		}
		src, err := os.ReadFile(docPath)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: document file: %w", err)
		}
		scenario.Document = string(src)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Document == "" {
		return fmt.Errorf("document or document_file is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step names exactly one call with its
// required fields.
func validateStep(index int, s *Step) error {
	calls := 0
	if s.Start {
		calls++
	}
	if s.Action != nil {
		calls++
		if s.Action.Target == "" {
			return fmt.Errorf("steps[%d]: action target is required", index)
		}
		if _, err := ir.ParseTransition(s.Action.Transition); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	if s.Tick != "" {
		calls++
		if _, err := time.ParseDuration(s.Tick); err != nil {
			return fmt.Errorf("steps[%d]: invalid tick: %w", index, err)
		}
	}
	if s.Key != nil {
		calls++
	}
	if s.Set != nil {
		calls++
		if s.Set.Object == "" || s.Set.Property == "" {
			return fmt.Errorf("steps[%d]: set needs object and property", index)
		}
		if s.Set.Duration != "" {
			if _, err := ir.ParseTime(s.Set.Duration); err != nil {
				return fmt.Errorf("steps[%d]: invalid set duration: %w", index, err)
			}
		}
	}
	if s.Reselect != "" {
		calls++
	}
	if s.Finish != "" {
		calls++
	}
	if calls != 1 {
		return fmt.Errorf("steps[%d]: exactly one of start, action, tick, key, set, reselect, finish is required (got %d)", index, calls)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains, AssertTraceCount, AssertOccurrences:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertState:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for state", index)
		}
		if _, err := ir.ParseEventState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertProperty:
		if a.Object == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: object and name are required for property", index)
		}
	case AssertFinished:
		if a.Value != "true" && a.Value != "false" {
			return fmt.Errorf("assertions[%d]: finished value must be \"true\" or \"false\"", index)
		}
	case AssertPlayerCalls:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for player_calls", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Transition != "" {
		if _, err := ir.ParseTransition(a.Transition); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}

	return nil
}
