package watcher

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"rusty-hooks/pkg/script"
)

// subscription is what the Ingestor dispatches to the Path Subscriber's
// control loop for each unique HomeDir: spec.md §4.3 step 3.
type subscription struct {
	homeDir string
	scripts []script.Script
}

// Ingestor is the Event Ingestor, C3. It owns a recursive fsnotify watch on
// one root, filters raw notifications per spec.md §4.3, computes each
// event's HomeDir, and publishes:
//   - the enriched FsEvent onto rawBus, for every live debounce task to
//     check for overlap with its own HomeDir (spec.md §4.4.1);
//   - a subscription message onto subCh for every unique HomeDir with a
//     non-empty ScriptSet for the event's kind (spec.md §4.3 step 3).
//
// Grounded on the teacher's pkg/events.StartFSWatcher: both recursively add
// watches for a root and its subdirectories, track watched directories in a
// set to avoid duplicate Add calls, and run a dedicated goroutine reading
// w.Events/w.Errors. Diverges from the teacher in kind classification (see
// classify) and in publishing to two independent destinations instead of
// one hub, since this pipeline's Subscriber and debounce tasks need
// different shapes of the same event.
type Ingestor struct {
	root    string
	scripts script.Set
	rawBus  *EventBus
	subCh   chan<- subscription

	watcher  *fsnotify.Watcher
	watched  map[string]struct{}
	external <-chan FsEvent
}

// NewIngestor opens a recursive fsnotify watch on root. external is an
// optional (nilable) additional event source — used by pkg/syncthing to
// feed LocalIndexUpdated notifications into the same filter/dispatch path
// as fsnotify's own events, since both represent "a file under this root
// finished changing" (spec.md's SUPPLEMENTED FEATURES; see SPEC_FULL.md
// §12).
func NewIngestor(root string, scripts script.Set, rawBus *EventBus, subCh chan<- subscription, external <-chan FsEvent) (*Ingestor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ing := &Ingestor{
		root:     root,
		scripts:  scripts,
		rawBus:   rawBus,
		subCh:    subCh,
		watcher:  w,
		watched:  make(map[string]struct{}),
		external: external,
	}
	if err := ing.addWatchTree(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return ing, nil
}

func (ing *Ingestor) addWatchTree(dir string) error {
	if _, ok := ing.watched[dir]; ok {
		return nil
	}
	if err := ing.watcher.Add(dir); err != nil {
		return err
	}
	ing.watched[dir] = struct{}{}

	entries, err := readDirNames(dir)
	if err != nil {
		// A directory that vanished between discovery and Add is not fatal
		// to the whole watch — this one subtree is simply unwatched.
		return nil
	}
	for _, sub := range entries {
		_ = ing.addWatchTree(sub)
	}
	return nil
}

// Run consumes raw fsnotify events until the watcher's channels close or
// stop is closed, or until more than maxConsecutiveFailures watch errors
// arrive in a row (then it returns ErrTooManyConsecutiveFailures). Its exit
// then cascades through the Watcher Supervisor's selective wait.
func (ing *Ingestor) Run(stop <-chan struct{}) error {
	defer ing.watcher.Close()
	consecutiveErrors := 0
	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-ing.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = ing.addWatchTree(ev.Name)
				}
			}
			kind, accept := classify(ev.Op)
			if !accept {
				continue
			}
			slog.Debug("ingestor received event", "kind", kind, "path", ev.Name)
			ing.handle(kind, ev.Name)
			consecutiveErrors = 0
		case evt, ok := <-ing.external:
			if !ok {
				ing.external = nil
				continue
			}
			for _, p := range evt.Paths {
				slog.Debug("ingestor received external event", "kind", evt.Kind, "path", p)
				ing.handle(evt.Kind, p)
			}
		case err, ok := <-ing.watcher.Errors:
			if !ok {
				return nil
			}
			consecutiveErrors++
			slog.Error("ingestor: malformed raw event", "error", err, "consecutive", consecutiveErrors)
			if consecutiveErrors > maxConsecutiveFailures {
				return ErrTooManyConsecutiveFailures
			}
		}
	}
}

// classify maps an fsnotify.Op to the spec's EventKind trigger table
// (spec.md §4.3 step 1).
//
// fsnotify folds the inotify IN_MOVED_TO event (an atomic rename landing on
// its destination name — the "rename-to completion" the spec's Modify row
// asks for) into the same Op_Create bit as IN_CREATE (see fsnotify's
// backend_inotify.go, which ORs IN_CREATE and IN_MOVED_TO into one Create
// case). The Rust notify crate the original was built on keeps these
// distinct (ModifyKind::Name(RenameMode::To) vs Create), which is how the
// original filtered out "looks new" events that were actually
// still-being-written temp files mid-rename. Go's fsnotify can't make that
// distinction, so this rewrite treats every Create op as satisfying both
// the Create and the Modify trigger — the property the spec actually cares
// about (a file mid-write never fires scripts) still holds, because
// fsnotify reports mid-write activity as Write, which is filtered out
// entirely below, never promoted to Modify.
//
// fsnotify also has no Access op at all (unlike the notify crate, which
// can report IN_ACCESS on Linux) — the teacher's own fswatch.go has the
// same gap, switching only on Create/Write/Remove/Rename/Chmod. A script
// bound only to the Access trigger will never fire from this Ingestor; see
// DESIGN.md.
func classify(op fsnotify.Op) (script.EventKind, bool) {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return script.EventCreate, true
	case op&fsnotify.Remove == fsnotify.Remove:
		return script.EventRemove, true
	case op&fsnotify.Rename == fsnotify.Rename:
		return script.EventOther, true
	case op&fsnotify.Chmod == fsnotify.Chmod:
		return script.EventOther, true
	default:
		// fsnotify.Write and anything else: a mid-write, not-yet-settled
		// change. Always ignored, matching spec.md §4.3's "partial /
		// intermediate modify events are ignored".
		return "", false
	}
}

func (ing *Ingestor) handle(kind script.EventKind, path string) {
	ing.rawBus.Publish(FsEvent{Kind: kind, Paths: []string{path}})

	if kind == script.EventCreate {
		// A Create in this rewrite also satisfies the Modify trigger — see
		// classify's doc comment.
		ing.dispatch(script.EventModify, path)
	}
	ing.dispatch(kind, path)
}

func (ing *Ingestor) dispatch(kind script.EventKind, path string) {
	if ing.scripts.Empty(kind) {
		return
	}
	for _, home := range HomeDirsFor([]string{path}, ing.root) {
		ing.subCh <- subscription{homeDir: home, scripts: ing.scripts.ForKind(kind)}
	}
}

// readDirNames returns the absolute paths of dir's immediate subdirectories.
func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}
