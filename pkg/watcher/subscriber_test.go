package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rusty-hooks/pkg/script"
)

func TestOverlapsHomeDir(t *testing.T) {
	hash := HashPath("/watch/alice")
	assert.True(t, overlapsHomeDir([]string{"/watch/alice/docs/file.txt"}, hash))
	assert.True(t, overlapsHomeDir([]string{"/watch/alice"}, hash))
	assert.False(t, overlapsHomeDir([]string{"/watch/bob/file.txt"}, hash))
}

func TestUnderRoot(t *testing.T) {
	assert.True(t, UnderRoot("/watch/alice", "/watch"))
	assert.True(t, UnderRoot("/watch", "/watch"))
	assert.False(t, UnderRoot("/elsewhere", "/watch"))
	assert.False(t, UnderRoot("/watchX", "/watch"))
}

func TestSubscriber_SingleEventFiresOnceAfterWindow(t *testing.T) {
	registry := NewRegistry()
	bus := NewEventBus(16)
	runCh := make(chan RunMessage, 4)
	sub := NewSubscriber(registry, bus, runCh, 30*time.Millisecond)

	subCh := make(chan subscription, 4)
	stop := make(chan struct{})
	defer close(stop)
	go func() { _ = sub.Run(subCh, stop) }()

	scripts := []script.Script{{Name: "a"}}
	subCh <- subscription{homeDir: "/watch/alice", scripts: scripts}

	select {
	case msg := <-runCh:
		assert.Equal(t, "/watch/alice", msg.HomeDir)
		assert.Equal(t, scripts, msg.Scripts)
	case <-time.After(2 * time.Second):
		t.Fatal("debounce task never fired a RunMessage")
	}

	select {
	case <-runCh:
		t.Fatal("debounce task fired a second time for a single touch")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriber_BurstCoalescesIntoSingleFiring(t *testing.T) {
	registry := NewRegistry()
	bus := NewEventBus(16)
	runCh := make(chan RunMessage, 4)
	window := 80 * time.Millisecond
	sub := NewSubscriber(registry, bus, runCh, window)

	subCh := make(chan subscription, 4)
	stop := make(chan struct{})
	defer close(stop)
	go func() { _ = sub.Run(subCh, stop) }()

	homeDir := "/watch/alice"
	scripts := []script.Script{{Name: "a"}}
	subCh <- subscription{homeDir: homeDir, scripts: scripts}

	// Keep the debounce window from expiring by publishing overlapping raw
	// events faster than the window, for a bit longer than window itself.
	burstDeadline := time.Now().Add(window * 3)
	for time.Now().Before(burstDeadline) {
		bus.Publish(FsEvent{Kind: script.EventModify, Paths: []string{homeDir + "/file.txt"}})
		time.Sleep(window / 4)
	}

	select {
	case msg := <-runCh:
		assert.Equal(t, homeDir, msg.HomeDir)
	case <-time.After(2 * time.Second):
		t.Fatal("debounce task never fired after the burst settled")
	}

	select {
	case <-runCh:
		t.Fatal("burst should have coalesced into exactly one firing")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriber_DisjointHomeDirsFireIndependently(t *testing.T) {
	registry := NewRegistry()
	bus := NewEventBus(16)
	runCh := make(chan RunMessage, 4)
	sub := NewSubscriber(registry, bus, runCh, 20*time.Millisecond)

	subCh := make(chan subscription, 4)
	stop := make(chan struct{})
	defer close(stop)
	go func() { _ = sub.Run(subCh, stop) }()

	subCh <- subscription{homeDir: "/watch/alice", scripts: []script.Script{{Name: "a"}}}
	subCh <- subscription{homeDir: "/watch/bob", scripts: []script.Script{{Name: "b"}}}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-runCh:
			seen[msg.HomeDir] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 independent firings, got %d", i)
		}
	}
	assert.True(t, seen["/watch/alice"])
	assert.True(t, seen["/watch/bob"])
}

func TestSubscriber_RunUnsubscribe_RemovesTrackedHomeDir(t *testing.T) {
	registry := NewRegistry()
	bus := NewEventBus(16)
	runCh := make(chan RunMessage, 4)
	sub := NewSubscriber(registry, bus, runCh, time.Hour)

	hash := HashPath("/watch/alice")
	inserted, ok := registry.TryInsert(hash, Record{HomeDir: "/watch/alice"})
	require.True(t, ok)
	require.True(t, inserted)

	unsubCh := make(chan string, 4)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- sub.RunUnsubscribe("/watch", unsubCh, stop) }()

	unsubCh <- "/watch/alice"

	require.Eventually(t, func() bool {
		found, ok := registry.Contains(hash)
		return ok && !found
	}, time.Second, 5*time.Millisecond)

	close(stop)
	<-done
}

func TestSubscriber_RunUnsubscribe_IgnoresPathsOutsideRoot(t *testing.T) {
	registry := NewRegistry()
	bus := NewEventBus(16)
	runCh := make(chan RunMessage, 4)
	sub := NewSubscriber(registry, bus, runCh, time.Hour)

	hash := HashPath("/other/alice")
	_, _ = registry.TryInsert(hash, Record{HomeDir: "/other/alice"})

	unsubCh := make(chan string, 4)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- sub.RunUnsubscribe("/watch", unsubCh, stop) }()

	unsubCh <- "/other/alice"
	time.Sleep(50 * time.Millisecond)

	found, ok := registry.Contains(hash)
	require.True(t, ok)
	assert.True(t, found, "a path outside this subscriber's root must not be removed")

	close(stop)
	<-done
}
