package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/harness"
	"github.com/roach88/hyperplay/internal/testutil"
)

// playResponse mirrors the JSON output of play.
type playResponse struct {
	Status string     `json:"status"`
	Data   PlayResult `json:"data"`
}

func decodePlay(t *testing.T, output string) PlayResult {
	t.Helper()
	var resp playResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func traceEvents(lines []TraceLine) []string {
	var out []string
	for _, l := range lines {
		out = append(out, l.Event+":"+l.Transition)
	}
	return out
}

func TestParseKeyPress(t *testing.T) {
	tests := []struct {
		in      string
		want    KeyPress
		wantErr string
	}{
		{in: "RED@2s", want: KeyPress{Key: "RED", At: 2 * time.Second}},
		{in: "OK@1.5", want: KeyPress{Key: "OK", At: 1500 * time.Millisecond}},
		{in: "RED", wantErr: "want KEY@time"},
		{in: "@2s", wantErr: "want KEY@time"},
		{in: "RED@", wantErr: "want KEY@time"},
		{in: "RED@soon", wantErr: `invalid key "RED@soon"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKeyPress(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlaySingleMediaText(t *testing.T) {
	output, err := executeCommand(t, "--no-color", "play", filepath.Join(documentsDir, "single_media.cue"), "--session", "text-session")
	require.NoError(t, err)

	assert.Contains(t, output, "[1] 0s      show presentation start (sleeping -> occurring)")
	assert.Contains(t, output, "[3] 10s     video presentation stop (occurring -> sleeping)")
	assert.Contains(t, output, "show finished after 10s, 4 transition(s)")
	assert.Contains(t, output, "session text-session")
}

func TestPlaySingleMediaJSON(t *testing.T) {
	output, err := executeCommand(t, "--format", "json", "play", filepath.Join(documentsDir, "single_media.cue"), "--session", "json-session")
	require.NoError(t, err)

	result := decodePlay(t, output)
	assert.Equal(t, "json-session", result.Session)
	assert.Equal(t, "show", result.Document)
	assert.True(t, result.Finished)
	assert.Equal(t, "10s", result.Elapsed)
	assert.Len(t, result.TraceHash, 64)
	assert.Len(t, result.DocumentHash, 64)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"show:start", "video:start", "video:stop", "show:stop"}, traceEvents(result.Trace))
	assert.Equal(t, "10s", result.Trace[3].Time)
}

func TestPlayMatchesScenarioTrace(t *testing.T) {
	output, err := executeCommand(t, "--format", "json", "play", filepath.Join(documentsDir, "single_media.cue"))
	require.NoError(t, err)
	played := decodePlay(t, output)

	scenario, err := harness.LoadScenario(filepath.Join("..", "..", "testdata", "scenarios", "single_media.yaml"))
	require.NoError(t, err)
	result, err := harness.Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	assert.Equal(t, result.TraceHash, played.TraceHash, "fine ticks and coarse steps reach the same trace")
}

func TestPlayDeterministicAcrossSessions(t *testing.T) {
	path := filepath.Join(documentsDir, "menu.cue")
	var hashes []string
	for _, session := range []string{"first", "second"} {
		output, err := executeCommand(t, "--format", "json", "play", path,
			"--session", session, "--duration", "8s", "--key", "RED@1s")
		require.NoError(t, err)
		hashes = append(hashes, decodePlay(t, output).TraceHash)
	}
	assert.Equal(t, hashes[0], hashes[1])
}

func TestPlayWithKeys(t *testing.T) {
	output, err := executeCommand(t, "--format", "json", "play", filepath.Join(documentsDir, "menu.cue"),
		"--duration", "10s", "--tick", "100ms", "--key", "RED@1s")
	require.NoError(t, err)

	result := decodePlay(t, output)
	assert.False(t, result.Finished, "the menu never ends")
	assert.Equal(t, "10s", result.Elapsed)

	events := traceEvents(result.Trace)
	assert.Contains(t, events, "menu<:RED>:start")
	assert.Contains(t, events, "clip:start")
	assert.Contains(t, events, "frame.color:start")
	assert.Contains(t, events, "clip:stop")

	for _, l := range result.Trace {
		if l.Event == "clip" && l.Transition == "start" {
			assert.Equal(t, "1s", l.Time)
		}
		if l.Event == "clip" && l.Transition == "stop" {
			assert.Equal(t, "6s", l.Time)
		}
	}
}

func TestPlayWithoutKeysNeverStartsClip(t *testing.T) {
	output, err := executeCommand(t, "--format", "json", "play", filepath.Join(documentsDir, "menu.cue"), "--duration", "2s")
	require.NoError(t, err)

	result := decodePlay(t, output)
	assert.Equal(t, []string{"menu_show:start", "menu:start"}, traceEvents(result.Trace))
}

func TestPlayWithConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "hyperplay.yaml")
	writeDocument(t, filepath.Dir(cfg), "hyperplay.yaml", "play:\n  duration: 3s\n  tick: 500ms\n")

	output, err := executeCommand(t, "--config", cfg, "--format", "json", "play", filepath.Join(documentsDir, "single_media.cue"))
	require.NoError(t, err)

	result := decodePlay(t, output)
	assert.False(t, result.Finished)
	assert.Equal(t, "3s", result.Elapsed)
	assert.Equal(t, []string{"show:start", "video:start"}, traceEvents(result.Trace))
}

func TestPlayRecordsPlayerCalls(t *testing.T) {
	factory := testutil.NewRecordingFactory()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	opts := &PlayOptions{
		RootOptions: &RootOptions{
			Format: "json",
			Config: &Config{LogLevel: "info", MaxSteps: 100, Tick: time.Second, Duration: 30 * time.Second},
		},
		Players:          factory,
		SessionGenerator: testutil.NewFixedSessionGenerator("recorded"),
	}

	require.NoError(t, runPlay(opts, filepath.Join(documentsDir, "single_media.cue"), cmd))
	var calls []string
	for _, c := range factory.Calls() {
		if !strings.Contains(c, ".set(") {
			calls = append(calls, c)
		}
	}
	assert.Equal(t, []string{"video.prepare(0s)", "video.start", "video.stop"}, calls)

	result := decodePlay(t, buf.String())
	assert.Equal(t, "recorded", result.Session)
	assert.True(t, result.Finished)
}

func TestPlayRealtime(t *testing.T) {
	output, err := executeCommand(t, "--format", "json", "play", filepath.Join(documentsDir, "menu.cue"),
		"--realtime", "--duration", "200ms", "--tick", "10ms")
	require.NoError(t, err)

	result := decodePlay(t, output)
	assert.False(t, result.Finished)
	require.GreaterOrEqual(t, len(result.Trace), 2)
	assert.Equal(t, []string{"menu_show:start", "menu:start"}, traceEvents(result.Trace[:2]))
}

func TestPlayErrors(t *testing.T) {
	bad := writeDocument(t, t.TempDir(), "bad.cue", `document: {id: "bad", body: {ports: p: {component: "ghost"}, children: a: {}}}`)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing document",
			args:     []string{"play", "/nonexistent/show.cue"},
			wantCode: ExitCommandError,
			wantErr:  "failed to load document",
		},
		{
			name:     "bad key",
			args:     []string{"play", filepath.Join(documentsDir, "menu.cue"), "--key", "RED"},
			wantCode: ExitCommandError,
			wantErr:  "invalid --key",
		},
		{
			name:     "invalid document",
			args:     []string{"play", bad},
			wantCode: ExitFailure,
			wantErr:  "document bad is invalid",
		},
		{
			name:     "bad tick",
			args:     []string{"play", filepath.Join(documentsDir, "menu.cue"), "--tick", "0s"},
			wantCode: ExitCommandError,
			wantErr:  "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
