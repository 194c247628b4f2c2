// Package script holds the immutable data model loaded from scripts.yml:
// individual Script descriptors and the ScriptSet that groups them by the
// event kind that triggers them.
package script

import "fmt"

// EventKind is one of the trigger kinds a Script can be bound to.
type EventKind string

const (
	EventAccess EventKind = "Access"
	EventCreate EventKind = "Create"
	EventModify EventKind = "Modify"
	EventRemove EventKind = "Remove"
	EventOther  EventKind = "Other"
)

// ValidEventKinds lists every EventKind scripts.yml may declare under
// event_triggers.
var ValidEventKinds = []EventKind{EventAccess, EventCreate, EventModify, EventRemove, EventOther}

func (k EventKind) valid() bool {
	switch k {
	case EventAccess, EventCreate, EventModify, EventRemove, EventOther:
		return true
	default:
		return false
	}
}

// ParseEventKind validates a raw string from the config file against the
// fixed set of supported trigger names.
func ParseEventKind(raw string) (EventKind, error) {
	k := EventKind(raw)
	if !k.valid() {
		return "", fmt.Errorf("unrecognized event trigger %q", raw)
	}
	return k, nil
}

// Script is an immutable executable descriptor bound to one watch root and
// one or more event kinds. Built once at config load time and never mutated
// afterward — every component downstream of the config loader treats a
// Script value as read-only.
type Script struct {
	Name          string
	Description   string
	FilePath      string // absolute path, resolved against the script folder
	FileName      string // original file_name as declared in scripts.yml
	WatchPath     string // absolute watch root this script applies to
	EventTriggers []EventKind
	RunDelay      uint8 // seconds, 0..255
	Enabled       bool
	Dependencies  []string
}

// TriggersOn reports whether the script is bound to the given event kind.
func (s Script) TriggersOn(kind EventKind) bool {
	for _, k := range s.EventTriggers {
		if k == kind {
			return true
		}
	}
	return false
}

// Set maps an event kind to the ordered sequence of Scripts it triggers,
// for a single watch root. Built once at startup by the config loader and
// read-only thereafter — safe to share across every debounce task and
// goroutine that observes events for that root.
type Set struct {
	byKind map[EventKind][]Script
}

// NewSet builds a Set from a flat list of scripts declared for one watch
// root. A script appears under every event kind it declares, in the order
// scripts were declared in scripts.yml (stable order is relied on by the
// Script Runner's launch ordering, see pkg/runner).
func NewSet(scripts []Script) Set {
	byKind := make(map[EventKind][]Script, len(ValidEventKinds))
	for _, s := range scripts {
		if !s.Enabled {
			continue
		}
		for _, k := range s.EventTriggers {
			byKind[k] = append(byKind[k], s)
		}
	}
	return Set{byKind: byKind}
}

// ForKind returns the ordered scripts bound to kind, or nil if none.
func (s Set) ForKind(kind EventKind) []Script {
	return s.byKind[kind]
}

// Empty reports whether no scripts are bound to kind.
func (s Set) Empty(kind EventKind) bool {
	return len(s.byKind[kind]) == 0
}
