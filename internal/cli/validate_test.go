package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/compiler"
)

// validateResponse mirrors the JSON output of validate.
type validateResponse struct {
	Status string             `json:"status"`
	Data   []ValidationResult `json:"data"`
}

func runValidateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format, NoColor: true}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeDocument(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestValidateValidDocument(t *testing.T) {
	path := filepath.Join(documentsDir, "single_media.cue")

	output, err := runValidateCommand(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, output, "\u2713 "+path+" (show)")
}

func TestValidateValidDocumentJSON(t *testing.T) {
	path := filepath.Join(documentsDir, "menu.cue")

	output, err := runValidateCommand(t, "json", path)
	require.NoError(t, err)

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Valid)
	assert.Equal(t, "menu_show", resp.Data[0].Document)
	assert.Len(t, resp.Data[0].DocumentHash, 64)
	assert.Empty(t, resp.Data[0].Errors)
}

func TestValidateMultipleDocuments(t *testing.T) {
	output, err := runValidateCommand(t, "text",
		filepath.Join(documentsDir, "single_media.cue"),
		filepath.Join(documentsDir, "menu.cue"))
	require.NoError(t, err)
	assert.Contains(t, output, "(show)")
	assert.Contains(t, output, "(menu_show)")
}

func TestValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "show.cue", `
package show

document: {
	id: "dir_show"
	body: children: video: {src: "video.mp4"}
}
`)

	output, err := runValidateCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "(dir_show)")
}

func TestValidateNonExistentPath(t *testing.T) {
	output, err := runValidateCommand(t, "text", "/nonexistent/document.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, output, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	output, err := runValidateCommand(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, output, "no CUE files found")
}

func TestValidateInvalidDocument(t *testing.T) {
	path := writeDocument(t, t.TempDir(), "bad.cue", `
document: {
	id: "bad"
	body: {
		ports: entry: {component: "ghost"}
		children: video: {src: "video.mp4"}
	}
}
`)

	output, err := runValidateCommand(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 1 document(s) invalid")
	assert.Contains(t, output, "\u2717 "+path)
	assert.Contains(t, output, compiler.ErrPortUnresolved)
	assert.Contains(t, output, `port component "ghost"`)
}

func TestValidateInvalidDocumentJSON(t *testing.T) {
	path := writeDocument(t, t.TempDir(), "bad.cue", `
document: {
	id: "bad"
	body: children: {
		a: areas: seg: {begin: "4s", end: "2s"}
		s: {kind: "switch", children: b: {}, default: "z"}
	}
}
`)

	output, err := runValidateCommand(t, "json", path)
	require.Error(t, err)

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.False(t, resp.Data[0].Valid)

	var codes []string
	for _, e := range resp.Data[0].Errors {
		codes = append(codes, e.Code)
	}
	assert.ElementsMatch(t, []string{compiler.ErrInvalidInterval, compiler.ErrInvalidSwitchRule}, codes)
}

func TestValidateCompileErrorIsReportedAsInvalid(t *testing.T) {
	path := writeDocument(t, t.TempDir(), "broken.cue", `document: {id: "x", body: children: a: {kind: "widget"}}`)

	result, err := ValidateDocument(path)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrCodeCompile, result.Errors[0].Code)
}

func TestValidateCycleWarning(t *testing.T) {
	path := writeDocument(t, t.TempDir(), "loop.cue", `
document: {
	id: "loop"
	connectors: onEndStart: {
		conditions: [{role: "onEnd", transition: "stop"}]
		actions: [{role: "start", transition: "start"}]
	}
	body: {
		children: {a: {src: "a.mp4"}, b: {src: "b.mp4"}}
		links: {
			ab: {connector: "onEndStart", binds: [{role: "onEnd", component: "a"}, {role: "start", component: "b"}]}
			ba: {connector: "onEndStart", binds: [{role: "onEnd", component: "b"}, {role: "start", component: "a"}]}
		}
	}
}
`)

	output, err := runValidateCommand(t, "text", path)
	require.NoError(t, err, "cycles are warnings")
	assert.Contains(t, output, "warning: Potential link cycle detected: loop/ab -> loop/ba -> loop/ab")
}

func TestValidateVerboseOutput(t *testing.T) {
	buf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true, NoColor: true}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	path := filepath.Join(documentsDir, "single_media.cue")
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), path+": 0 error(s), 0 warning(s)")
	assert.Contains(t, buf.String(), "  hash ")
}

func TestGetLineFromCuePos(t *testing.T) {
	assert.Equal(t, 0, getLineFromCuePos(&LoadError{Code: ErrCodeCompile}))
}
