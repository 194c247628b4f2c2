package watcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalkUpToHomeDir(t *testing.T) {
	root := "/watch"
	home, err := walkUpToHomeDir("/watch/alice/docs/file.txt", root)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Clean("/watch/alice"), home)
}

func TestWalkUpToHomeDir_ImmediateChild(t *testing.T) {
	root := "/watch"
	home, err := walkUpToHomeDir("/watch/alice", root)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Clean("/watch/alice"), home)
}

func TestWalkUpToHomeDir_RootItselfIsTraversal(t *testing.T) {
	_, err := walkUpToHomeDir("/watch", "/watch")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestWalkUpToHomeDir_PathOutsideRoot(t *testing.T) {
	_, err := walkUpToHomeDir("/elsewhere/file.txt", "/watch")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestHomeDirsFor_DedupsAndDropsOutsidePaths(t *testing.T) {
	root := "/watch"
	paths := []string{
		"/watch/alice/a.txt",
		"/watch/alice/b.txt",
		"/watch/bob/c.txt",
		"/elsewhere/d.txt",
	}
	homes := HomeDirsFor(paths, root)
	assert.ElementsMatch(t, []string{
		filepath.Clean("/watch/alice"),
		filepath.Clean("/watch/bob"),
	}, homes)
}

func TestHomeDirsFor_Empty(t *testing.T) {
	assert.Empty(t, HomeDirsFor(nil, "/watch"))
}
