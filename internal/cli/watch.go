package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 200 * time.Millisecond

// documentWatcher reports which validate arguments changed on disk.
//
// A file argument is watched through its directory: editors that save by
// writing a temp file and renaming it would otherwise drop the watch.
type documentWatcher struct {
	watcher  *fsnotify.Watcher
	roots    []watchRoot
	debounce time.Duration
}

type watchRoot struct {
	arg   string // as given on the command line
	path  string // cleaned
	isDir bool
}

func newDocumentWatcher(paths []string, debounce time.Duration) (*documentWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &documentWatcher{watcher: fw, debounce: debounce}

	added := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		root := watchRoot{arg: p, path: filepath.Clean(p), isDir: info.IsDir()}
		w.roots = append(w.roots, root)

		dir := root.path
		if !root.isDir {
			dir = filepath.Dir(root.path)
		}
		if added[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		added[dir] = true
	}
	return w, nil
}

// owner maps a changed file to the argument it belongs to.
func (w *documentWatcher) owner(name string) (string, bool) {
	if !strings.HasSuffix(name, ".cue") {
		return "", false
	}
	name = filepath.Clean(name)
	for _, r := range w.roots {
		if r.isDir && filepath.Dir(name) == r.path {
			return r.arg, true
		}
		if !r.isDir && name == r.path {
			return r.arg, true
		}
	}
	return "", false
}

// Run calls fn once per changed argument after the debounce window goes
// quiet. fn runs on the caller's goroutine. Run returns nil when ctx is
// done or the watcher is closed.
func (w *documentWatcher) Run(ctx context.Context, fn func(arg string)) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			arg, ok := w.owner(ev.Name)
			if !ok {
				continue
			}
			slog.Debug("document changed", "file", ev.Name, "op", ev.Op.String())
			pending[arg] = true
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		case <-timer.C:
			args := make([]string, 0, len(pending))
			for a := range pending {
				args = append(args, a)
			}
			sort.Strings(args)
			clear(pending)
			for _, a := range args {
				fn(a)
			}
		}
	}
}

func (w *documentWatcher) Close() error {
	return w.watcher.Close()
}
