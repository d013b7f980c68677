package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)

	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Check("start(A)"), "step %d should be allowed", i+1)
	}
	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Check("start(A)"))
	}

	err := q.Check("start(A)")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "start(A)", stepsErr.Seed)
	assert.Equal(t, 4, stepsErr.Steps)
	assert.Equal(t, 3, stepsErr.Limit)
	assert.True(t, IsQuotaError(err))
	assert.True(t, IsStepsExceededError(err))
}

func TestQuotaEnforcer_Reset(t *testing.T) {
	q := NewQuotaEnforcer(2)
	q.Check("a")
	q.Check("a")
	q.Reset()

	assert.Equal(t, 0, q.Current())
	assert.NoError(t, q.Check("a"))
}

func TestStepsExceededError_Message(t *testing.T) {
	err := &StepsExceededError{Seed: "stop(B)", Steps: 1001, Limit: 1000}

	msg := err.Error()
	assert.Contains(t, msg, "stop(B)")
	assert.Contains(t, msg, "1001")
	assert.Contains(t, msg, "1000")
}

func TestIsStepsExceededError(t *testing.T) {
	assert.True(t, IsStepsExceededError(&StepsExceededError{Seed: "x", Steps: 2, Limit: 1}))
	assert.False(t, IsStepsExceededError(nil))
	assert.False(t, IsStepsExceededError(assert.AnError))
}

func TestEngine_DefaultMaxSteps(t *testing.T) {
	e := New(mustDocument(t, newContext("doc")))
	assert.Equal(t, DefaultMaxSteps, e.maxSteps)

	e = New(mustDocument(t, newContext("doc")), WithMaxSteps(25))
	assert.Equal(t, 25, e.maxSteps)
}

func TestQuotaError_Classification(t *testing.T) {
	err := NewQuotaError("start(A)", 11, 10)

	assert.True(t, IsQuotaError(err))
	assert.False(t, IsDocumentError(err))
	assert.Equal(t, "10", err.Details["max_steps"])
	assert.Contains(t, err.Error(), "start(A)")
}
