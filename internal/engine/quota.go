package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the actions popped by one propagation and enforces
// a maximum.
//
// Every propagation gets its own QuotaEnforcer. Rejected transitions count
// too: a document whose links keep re-arming each other is caught even if
// most of the cascade is rejected.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
//
// maxSteps: Maximum number of actions per propagation.
// Typical default: 10000 (configurable via engine.WithMaxSteps())
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(seed string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Seed:  seed,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a propagation exceeds the max steps
// quota. The propagation stops; state changes already applied remain.
type StepsExceededError struct {
	Seed  string // The action that started the propagation
	Steps int    // Number of steps taken
	Limit int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("propagation of %s exceeded max steps quota: %d steps > %d limit",
		e.Seed, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
