package harness

import (
	"github.com/roach88/hyperplay/internal/ir"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectation and all assertions hold.
	Pass bool `json:"pass"`

	// SessionID is the session the trace was recorded under.
	SessionID string `json:"session_id"`

	// Trace contains every accepted transition in seq order, as read back
	// from the store.
	Trace []ir.TransitionRecord `json:"trace"`

	// TraceHash is the content hash of Trace.
	TraceHash string `json:"trace_hash"`

	// PlayerCalls is the ordered log of calls the engine made on players.
	PlayerCalls []string `json:"player_calls,omitempty"`

	// Errors contains step and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []ir.TransitionRecord{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
