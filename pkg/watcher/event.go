package watcher

import (
	"path/filepath"

	"rusty-hooks/pkg/script"
)

// FsEvent is the normalized event produced by the Event Ingestor (spec.md
// §3): a kind tag and the non-empty set of absolute paths it touched.
type FsEvent struct {
	Kind  script.EventKind
	Paths []string
}

// walkUpToHomeDir walks upward from leaf until it finds the topmost proper
// sub-directory of root that contains leaf — the HomeDir, spec.md §3.
// Grounded on original_source/src/watcher/watch_events.rs's
// walk_up_to_event_home_dir, translated from recursion (acceptable in Rust,
// which has guaranteed tail-call-shaped stack growth here) to an explicit
// loop, the idiomatic Go shape for unbounded ancestor walks.
func walkUpToHomeDir(leaf, root string) (string, error) {
	leaf = filepath.Clean(leaf)
	root = filepath.Clean(root)

	if leaf == root {
		return "", ErrPathTraversal
	}

	cur := leaf
	for {
		parent := filepath.Dir(cur)
		if parent == root {
			return cur, nil
		}
		if parent == cur {
			// reached filesystem root without ever meeting watch root
			return "", ErrPathTraversal
		}
		cur = parent
	}
}

// HomeDirsFor computes the unique HomeDirs touched by an event's paths,
// dropping any path with no ancestor equal to root (spec.md §8 I4).
func HomeDirsFor(paths []string, root string) []string {
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, p := range paths {
		home, err := walkUpToHomeDir(p, root)
		if err != nil {
			continue
		}
		if _, ok := seen[home]; ok {
			continue
		}
		seen[home] = struct{}{}
		out = append(out, home)
	}
	return out
}
