package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/compiler"
)

const watchedDocument = `
document: {
	id: "watched"
	body: children: video: {src: "video.mp4"}
}
`

const brokenPortDocument = `
document: {
	id: "watched"
	body: {
		ports: entry: {component: "ghost"}
		children: video: {src: "video.mp4"}
	}
}
`

func TestDocumentWatcherOwner(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(pkg, 0o755))
	file := writeDocument(t, dir, "show.cue", watchedDocument)

	w, err := newDocumentWatcher([]string{file, pkg}, time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		name    string
		changed string
		want    string
		ok      bool
	}{
		{"file argument", file, file, true},
		{"file in package dir", filepath.Join(pkg, "body.cue"), pkg, true},
		{"sibling of file argument", filepath.Join(dir, "other.cue"), "", false},
		{"not cue", filepath.Join(pkg, "notes.txt"), "", false},
		{"nested below package", filepath.Join(pkg, "sub", "x.cue"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.owner(tt.changed)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentWatcherMissingPath(t *testing.T) {
	_, err := newDocumentWatcher([]string{filepath.Join(t.TempDir(), "gone.cue")}, time.Millisecond)
	assert.Error(t, err)
}

func TestDocumentWatcherReportsChange(t *testing.T) {
	dir := t.TempDir()
	file := writeDocument(t, dir, "show.cue", watchedDocument)

	w, err := newDocumentWatcher([]string{file}, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan string, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(arg string) { changed <- arg }) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(file, []byte(brokenPortDocument), 0o644))

	select {
	case got := <-changed:
		assert.Equal(t, file, got)
	case <-time.After(5 * time.Second):
		t.Fatal("change was not reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRevalidateText(t *testing.T) {
	path := writeDocument(t, t.TempDir(), "show.cue", brokenPortDocument)
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf, NoColor: true}

	revalidate(f, path)
	assert.Contains(t, buf.String(), "\u2717 "+path)
	assert.Contains(t, buf.String(), compiler.ErrPortUnresolved)

	buf.Reset()
	require.NoError(t, os.WriteFile(path, []byte(watchedDocument), 0o644))
	revalidate(f, path)
	assert.Equal(t, "\u2713 "+path+" (watched)\n", buf.String())
}

func TestRevalidateReportsLoadFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	revalidate(f, filepath.Join(t.TempDir(), "gone.cue"))
	assert.Contains(t, buf.String(), `"status": "error"`)
	assert.Contains(t, buf.String(), ErrCodeNotFound)
}

func TestValidateWatchFlag(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{})
	flag := cmd.Flags().Lookup("watch")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
