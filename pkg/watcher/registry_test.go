package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rusty-hooks/pkg/script"
)

func TestHashPath_StableAndCanonicalizing(t *testing.T) {
	h1 := HashPath("/watch/alice")
	h2 := HashPath("/watch/alice/")
	h3 := HashPath("/watch/./alice")
	assert.Equal(t, h1, h2)
	assert.Equal(t, h1, h3)

	assert.NotEqual(t, h1, HashPath("/watch/bob"))
}

func TestRegistry_TryInsertThenContains(t *testing.T) {
	r := NewRegistry()
	hash := HashPath("/watch/alice")
	rec := Record{HomeDir: "/watch/alice", Scripts: []script.Script{{Name: "a"}}}

	inserted, ok := r.TryInsert(hash, rec)
	require.True(t, ok)
	assert.True(t, inserted)

	found, ok := r.Contains(hash)
	require.True(t, ok)
	assert.True(t, found)

	inserted, ok = r.TryInsert(hash, rec)
	require.True(t, ok)
	assert.False(t, inserted, "second insert of the same hash must be a no-op")

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	hash := HashPath("/watch/alice")

	removed, ok := r.Remove(hash)
	require.True(t, ok)
	assert.False(t, removed, "removing an absent hash reports removed=false, not an error")

	_, _ = r.TryInsert(hash, Record{HomeDir: "/watch/alice"})
	removed, ok = r.Remove(hash)
	require.True(t, ok)
	assert.True(t, removed)
	assert.Equal(t, 0, r.Len())
}
