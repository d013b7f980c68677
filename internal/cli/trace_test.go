package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/ir"
	"github.com/roach88/hyperplay/internal/store"
)

// traceResponse mirrors the JSON output of trace for one session.
type traceResponse struct {
	Status string      `json:"status"`
	Data   TraceResult `json:"data"`
}

// recordSession plays the single media document into a new database and
// returns the database path and the trace hash play reported.
func recordSession(t *testing.T, session string) (string, string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "trace.db")
	output, err := executeCommand(t, "--format", "json", "play", filepath.Join(documentsDir, "single_media.cue"),
		"--db", db, "--session", session)
	require.NoError(t, err)
	result := decodePlay(t, output)
	require.Equal(t, db, result.Database)
	return db, result.TraceHash
}

func decodeTrace(t *testing.T, output string) TraceResult {
	t.Helper()
	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestTraceMissingDatabase(t *testing.T) {
	t.Setenv("HYPERPLAY_STORE_PATH", "")
	_, err := executeCommand(t, "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database")
}

func TestTraceListSessions(t *testing.T) {
	db, _ := recordSession(t, "listed")

	output, err := executeCommand(t, "--no-color", "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "listed  show  4 transition(s)  finished")
}

func TestTraceListSessionsJSON(t *testing.T) {
	db, hash := recordSession(t, "listed-json")

	output, err := executeCommand(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   []store.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "listed-json", resp.Data[0].ID)
	assert.Equal(t, "show", resp.Data[0].DocumentID)
	assert.Equal(t, hash, resp.Data[0].TraceHash)
	assert.Equal(t, ir.EngineVersion, resp.Data[0].EngineVersion)
}

func TestTraceListEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	output, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "No sessions recorded.")
}

func TestTraceSession(t *testing.T) {
	db, hash := recordSession(t, "shown")

	output, err := executeCommand(t, "--no-color", "trace", "--db", db, "shown")
	require.NoError(t, err)

	assert.Contains(t, output, "Session:  shown")
	assert.Contains(t, output, "=== Transitions ===")
	assert.Contains(t, output, "[2] 0s      video presentation start (sleeping -> occurring)")
	assert.Contains(t, output, "Total:   4")
	assert.Contains(t, output, "Starts:  2")
	assert.Contains(t, output, "Stops:   2")
	assert.Contains(t, output, "Trace hash: "+hash)
	assert.NotContains(t, output, "Verify:")
}

func TestTraceSessionJSONVerify(t *testing.T) {
	db, hash := recordSession(t, "verified")

	output, err := executeCommand(t, "--format", "json", "trace", "--db", db, "verified", "--verify")
	require.NoError(t, err)

	result := decodeTrace(t, output)
	assert.Equal(t, "verified", result.Session.ID)
	assert.Equal(t, hash, result.TraceHash)
	require.NotNil(t, result.Verified)
	assert.True(t, *result.Verified)
	assert.Equal(t, TraceStats{Total: 4, Starts: 2, Stops: 2}, result.Stats)
	require.Len(t, result.Transitions, 4)
	assert.Equal(t, int64(1), result.Transitions[0].Seq)
	assert.Equal(t, "show", result.Transitions[0].Object)
}

func TestTraceObjectFilter(t *testing.T) {
	db, _ := recordSession(t, "filtered")

	output, err := executeCommand(t, "--format", "json", "trace", "--db", db, "filtered", "--object", "video")
	require.NoError(t, err)

	result := decodeTrace(t, output)
	assert.Equal(t, "object=video", result.Filter)
	require.Len(t, result.Transitions, 2)
	for _, l := range result.Transitions {
		assert.Equal(t, "video", l.Object)
	}
	assert.Equal(t, TraceStats{Total: 2, Starts: 1, Stops: 1}, result.Stats)
}

func TestTraceTransitionAndTimeFilters(t *testing.T) {
	db, hash := recordSession(t, "windowed")

	output, err := executeCommand(t, "--format", "json", "trace", "--db", db, "windowed",
		"--transition", "stop", "--since", "5s")
	require.NoError(t, err)

	result := decodeTrace(t, output)
	assert.Equal(t, "transition=stop since=5000ms", result.Filter)
	assert.Equal(t, hash, result.TraceHash, "filters never change the session hash")
	require.Len(t, result.Transitions, 2)
	assert.Equal(t, "video", result.Transitions[0].Object)
	assert.Equal(t, "show", result.Transitions[1].Object)
}

func TestTraceInvalidFilter(t *testing.T) {
	db, _ := recordSession(t, "bad-filter")

	tests := [][]string{
		{"--type", "hover"},
		{"--transition", "rewind"},
		{"--since", "5s", "--until", "1s"},
	}
	for _, flags := range tests {
		args := append([]string{"trace", "--db", db, "bad-filter"}, flags...)
		_, err := executeCommand(t, args...)
		require.Error(t, err, flags)
		assert.Equal(t, ExitCommandError, GetExitCode(err), flags)
	}
}

func TestTraceTamperedSessionFailsVerify(t *testing.T) {
	db, hash := recordSession(t, "tampered")

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE transitions SET time_ms = time_ms + 1 WHERE seq = 3`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	output, err := executeCommand(t, "--no-color", "trace", "--db", db, "tampered", "--verify")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "does not verify")
	assert.Contains(t, output, "Verify:     MISMATCH")
	assert.NotContains(t, output, "Trace hash: "+hash)
}

func TestTraceUnknownSession(t *testing.T) {
	db, _ := recordSession(t, "known")

	output, err := executeCommand(t, "trace", "--db", db, "unknown")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.Contains(t, output, "session not found")
}

func TestNewTraceLine(t *testing.T) {
	line := NewTraceLine(ir.TransitionRecord{
		Seq:        7,
		Time:       1500,
		Event:      "menu<:RED>",
		Object:     "menu",
		Type:       ir.Selection,
		Transition: ir.Stop,
		From:       ir.Occurring,
		To:         ir.Sleeping,
	})

	assert.Equal(t, TraceLine{
		Seq:        7,
		Time:       "1.5s",
		Object:     "menu",
		Event:      "menu<:RED>",
		Type:       "selection",
		Transition: "stop",
		From:       "occurring",
		To:         "sleeping",
	}, line)
}

func TestTraceStats(t *testing.T) {
	records := []ir.TransitionRecord{
		{Transition: ir.Start},
		{Transition: ir.Pause},
		{Transition: ir.Resume},
		{Transition: ir.Abort},
		{Transition: ir.Start},
	}
	assert.Equal(t, TraceStats{Total: 5, Starts: 2, Pauses: 1, Resumes: 1, Aborts: 1}, traceStats(records))
}
