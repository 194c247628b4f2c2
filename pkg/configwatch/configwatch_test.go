package configwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_LogsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.yml")
	require.NoError(t, os.WriteFile(path, []byte("scripts: []\n"), 0o644))

	w, err := New(path, dir)
	require.NoError(t, err)
	require.Equal(t, "scripts: []\n", w.last)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("scripts: [1]\n"), 0o644))

	require.Eventually(t, func() bool {
		content, err := os.ReadFile(path)
		return err == nil && w.last == string(content)
	}, 2*time.Second, 20*time.Millisecond, "watcher should observe the file content change")

	cancel()
	<-done
}

func TestNew_ToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.yml")

	w, err := New(path, dir)
	require.NoError(t, err)
	require.Empty(t, w.last)
}
