package watcher

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"rusty-hooks/pkg/script"
)

// RunMessage is what a completed debounce task emits on the run channel to
// the Script Runner (spec.md §4.4.1).
type RunMessage struct {
	HomeDir string
	Scripts []script.Script
}

// Subscriber is the Path Subscriber, C4: the control loop that admits new
// HomeDirs into the Registry and spawns one debounce task per HomeDir, plus
// the unsubscribe task that retires them once the Script Runner is done.
//
// Grounded on the teacher's pkg/events.fsWatcher debounce goroutine (the
// per-path timer-reset loop in fswatch.go), generalized from a single
// global debounce timer into the spec's per-HomeDir debounce-task-per-path
// model with an explicit Registry admission gate.
type Subscriber struct {
	registry *Registry
	rawBus   *EventBus
	runCh    chan<- RunMessage
	window   time.Duration
}

// NewSubscriber builds a Subscriber bound to one watched root's Registry,
// raw-event bus, and run channel, using debounce window w.
func NewSubscriber(registry *Registry, rawBus *EventBus, runCh chan<- RunMessage, w time.Duration) *Subscriber {
	return &Subscriber{registry: registry, rawBus: rawBus, runCh: runCh, window: w}
}

// Run is the control loop described in spec.md §4.4: receive a
// subscription message, admit it into the Registry, and spawn a debounce
// task for any HomeDir not already tracked. A native Go channel has no
// receive-error condition short of being closed, which this loop already
// treats as clean termination — the escalating "5 consecutive failures"
// rule from spec.md §4.4/§7 instead governs the debounce task's raw-event
// sub-task (runDebounceEvents below), where a genuinely malformed event
// (no touched paths) can occur because the raw bus is shared, untyped-at-
// the-boundary infrastructure.
func (s *Subscriber) Run(subCh <-chan subscription, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		case msg, ok := <-subCh:
			if !ok {
				return nil
			}
			s.admit(msg, stop)
		}
	}
}

// admit implements spec.md §4.4 steps 1-2: try-insert the HomeDir, spawning
// a debounce task only on a fresh insert. TryInsert failing to acquire the
// lock (ok == false) is transient contention, not an error — spec.md §4.2
// requires the caller retry, never give up or deadlock.
func (s *Subscriber) admit(msg subscription, stop <-chan struct{}) {
	hash := HashPath(msg.homeDir)
	for {
		inserted, ok := s.registry.TryInsert(hash, Record{HomeDir: msg.homeDir, Scripts: msg.scripts})
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if !inserted {
			// Already tracked: the live debounce task for this HomeDir will
			// absorb the new event through the raw bus. Nothing to do here.
			return
		}
		break
	}
	slog.Debug("subscriber: admitted new debounce task", "home_dir", msg.homeDir)
	go s.runDebounce(msg.homeDir, hash, msg.scripts, stop)
}

// runDebounce is the debounce task of spec.md §4.4.1: a timer sub-task and
// an event sub-task race until the timer expires, at which point the event
// sub-task is cancelled and exactly one RunMessage is emitted.
func (s *Subscriber) runDebounce(homeDir string, hash uint64, scripts []script.Script, stop <-chan struct{}) {
	timer := NewTimer(s.window)
	raw, unsub := s.rawBus.Subscribe()
	defer unsub()

	evStop := make(chan struct{})
	defer close(evStop)
	go s.runDebounceEvents(homeDir, hash, raw, timer, evStop)

	timer.AwaitExpiry(stop)

	select {
	case <-stop:
		// Supervisor tear-down, not a natural expiry: emit nothing.
		return
	default:
	}

	slog.Debug("subscriber: debounce window closed", "home_dir", homeDir)
	select {
	case s.runCh <- RunMessage{HomeDir: homeDir, Scripts: scripts}:
	case <-stop:
	}
}

// runDebounceEvents is the event sub-task of spec.md §4.4.1: for every
// enriched event on the raw bus, walk each touched path's ancestors and
// reset the timer if any ancestor's hash matches this debounce task's
// HomeDir. It never blocks the timer sub-task — resetting is a single
// non-blocking call.
func (s *Subscriber) runDebounceEvents(homeDir string, hash uint64, raw <-chan FsEvent, timer *Timer, stop <-chan struct{}) {
	consecutiveErrors := 0
	for {
		select {
		case <-stop:
			return
		case evt, ok := <-raw:
			if !ok {
				return
			}
			if len(evt.Paths) == 0 {
				consecutiveErrors++
				slog.Error("subscriber: malformed raw event", "home_dir", homeDir, "consecutive", consecutiveErrors)
				if consecutiveErrors > maxConsecutiveFailures {
					return
				}
				continue
			}
			consecutiveErrors = 0
			if overlapsHomeDir(evt.Paths, hash) {
				timer.Reset()
			}
		}
	}
}

// overlapsHomeDir reports whether any ancestor of any path in paths hashes
// to hash — spec.md §4.4.1's overlap test.
func overlapsHomeDir(paths []string, hash uint64) bool {
	for _, p := range paths {
		cur := filepath.Clean(p)
		for {
			if HashPath(cur) == hash {
				return true
			}
			parent := filepath.Dir(cur)
			if parent == cur {
				break
			}
			cur = parent
		}
	}
	return false
}

// RunUnsubscribe is the unsubscribe task of spec.md §4.4.2: one per
// Watcher Supervisor, listening on that Supervisor's unsubscribe channel
// (pkg/supervisor routes each unsubscribe to the root it lies under) and
// still filtering to paths under this Subscriber's own root before
// touching the Registry.
func (s *Subscriber) RunUnsubscribe(root string, unsubCh <-chan string, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		case path, ok := <-unsubCh:
			if !ok {
				return nil
			}
			if !UnderRoot(path, root) {
				continue
			}
			s.unsubscribeOne(path)
		}
	}
}

func (s *Subscriber) unsubscribeOne(path string) {
	hash := HashPath(path)
	for {
		removed, ok := s.registry.Remove(hash)
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if !removed {
			slog.Error("subscriber: unsubscribe miss", "home_dir", path, "error", ErrUnsubscribeMiss)
		} else {
			slog.Debug("subscriber: unsubscribed", "home_dir", path)
		}
		return
	}
}

// UnderRoot reports whether path is root itself or a descendant of it.
// Exported so pkg/supervisor can route an unsubscribe message to the one
// watch root it actually belongs to (see pkg/supervisor's routeUnsubscribes)
// instead of every root's RunUnsubscribe task racing to receive it off a
// single shared channel.
func UnderRoot(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
