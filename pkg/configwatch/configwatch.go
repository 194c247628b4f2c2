// Package configwatch watches scripts.yml for changes and logs a diff when
// it is edited. This is logging only — spec.md's Non-goals (SPEC_FULL.md
// §13) explicitly exclude hot-reload, so a detected change never causes
// the running configuration to be reloaded.
package configwatch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sergi/go-diff/diffmatchpatch"

	"rusty-hooks/pkg/config"
)

// Watcher observes one config file's directory (fsnotify needs the parent
// directory, not the file itself, to catch editors that save via
// write-temp-then-rename — the same reason pkg/watcher's Ingestor watches
// directories) and logs a diff whenever the file's content changes.
// Grounded on the teacher's pkg/tool/fs_tools.go edit-file handler, which
// uses the same diffmatchpatch.New/DiffMain/DiffPrettyText sequence to
// produce a human-readable diff of a file edit.
type Watcher struct {
	path         string
	scriptFolder string
	last         string
}

// New builds a Watcher for the config file at path. The file's current
// content is read as the initial baseline so the first real edit produces
// a meaningful diff instead of comparing against empty content. scriptFolder
// is used only to re-resolve config.HeadCommit when a change is detected, so
// the logged diff can be correlated with the commit that produced it.
func New(path, scriptFolder string) (*Watcher, error) {
	w := &Watcher{path: path, scriptFolder: scriptFolder}
	if content, err := os.ReadFile(path); err == nil {
		w.last = string(content)
	}
	return w, nil
}

// Run watches until ctx is cancelled. A watch-setup failure is returned;
// once running, a missing/unreadable file on a given event is logged and
// skipped rather than treated as fatal — this component is purely
// diagnostic and must never affect the core pipeline's lifecycle.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logDiff()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("configwatch: watch error", "error", err)
		}
	}
}

func (w *Watcher) logDiff() {
	content, err := os.ReadFile(w.path)
	if err != nil {
		slog.Error("configwatch: could not read config file", "path", w.path, "error", err)
		return
	}
	current := string(content)
	if current == w.last {
		return
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(w.last, current, true)
	if hash, ok := config.HeadCommit(w.scriptFolder); ok {
		slog.Info("configwatch: scripts.yml changed (no hot-reload)", "path", w.path, "head_commit", hash, "diff", dmp.DiffPrettyText(diffs))
	} else {
		slog.Info("configwatch: scripts.yml changed (no hot-reload)", "path", w.path, "diff", dmp.DiffPrettyText(diffs))
	}
	w.last = current
}
