package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/harness"
)

var scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")

// suiteResponse mirrors the JSON output of test.
type suiteResponse struct {
	Status string              `json:"status"`
	Data   harness.SuiteResult `json:"data"`
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format, NoColor: true}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

const failingScenario = `
name: wrong_state
document: |
  document: {
    id: "show"
    body: {
      ports: entry: {component: "video"}
      children: video: {src: "video.mp4", dur: "10s"}
    }
  }
steps:
  - start: true
assertions:
  - type: state
    event: video
    state: sleeping
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `scenario path "/nonexistent/scenarios" does not exist`)
}

func TestTestCommandEmptyDir(t *testing.T) {
	output, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	output, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp suiteResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.TotalScenarios)
	assert.Empty(t, resp.Data.Results)
}

func TestTestCommandRunsScenarios(t *testing.T) {
	output, err := runTestCommand(t, "text", scenariosDir, "--parallel", "2")
	require.NoError(t, err)

	assert.Contains(t, output, "PASS menu_navigation")
	assert.Contains(t, output, "PASS pause_resume")
	assert.Contains(t, output, "PASS single_media")
	assert.Contains(t, output, "3 passed, 0 failed, 3 total")
}

func TestTestCommandJSON(t *testing.T) {
	output, err := runTestCommand(t, "json", scenariosDir)
	require.NoError(t, err)

	var resp suiteResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.TotalScenarios)
	assert.Equal(t, 3, resp.Data.Passed)
	for _, r := range resp.Data.Results {
		assert.Len(t, r.TraceHash, 64, r.Name)
	}
}

func TestTestCommandFilter(t *testing.T) {
	output, err := runTestCommand(t, "text", scenariosDir, "--filter", "menu*")
	require.NoError(t, err)

	assert.Contains(t, output, "PASS menu_navigation")
	assert.NotContains(t, output, "single_media")
	assert.Contains(t, output, "1 passed, 0 failed, 1 total")
}

func TestTestCommandBadFilter(t *testing.T) {
	_, err := runTestCommand(t, "text", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(failingScenario), 0644))

	output, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 1 scenario(s) failed")
	assert.Contains(t, output, "FAIL wrong_state")
	assert.Contains(t, output, "Expected: video is sleeping")
	assert.Contains(t, output, "Actual: occurring")
	assert.Contains(t, output, "0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(failingScenario), 0644))

	output, err := runTestCommand(t, "json", dir)
	require.Error(t, err)

	var resp suiteResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data.Results, 1)
	assert.False(t, resp.Data.Results[0].Pass)
	assert.NotEmpty(t, resp.Data.Results[0].Errors)
}

func TestFilterScenarios(t *testing.T) {
	files := []string{"a/menu_navigation.yaml", "a/pause_resume.yml", "b/single_media.yaml"}

	got, err := filterScenarios(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)

	got, err = filterScenarios(files, "*_media")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/single_media.yaml"}, got)

	got, err = filterScenarios(files, "pause_resume")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/pause_resume.yml"}, got)

	_, err = filterScenarios(files, "[")
	require.Error(t, err)
}
