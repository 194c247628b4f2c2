package watcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"rusty-hooks/pkg/script"
)

// channelCapacity is the bounded capacity every inter-stage channel uses
// (spec.md §5: "All are broadcast channels with bounded capacity 16
// messages").
const channelCapacity = 16

// Supervisor is the Watcher Supervisor, C6: it owns one Registry, one
// Ingestor, and one Subscriber for a single watched root, launches them
// concurrently, and tears the whole root down the instant any one of them
// exits.
//
// Grounded on the selective-wait shutdown shape used throughout the
// broader example pack's daemon-style processes (e.g. colebrumley-srvrmgr's
// daemon.Run, which waits on a single ctx.Done alongside its event loop and
// cascades shutdown on the first termination); implemented here with
// golang.org/x/sync/errgroup.WithContext plus a shared cancel that every
// task calls on return, so the first task that returns (nil or not)
// cancels the others without hand-rolling a done-channel fan-in.
type Supervisor struct {
	Root    string
	Window  time.Duration
	Scripts script.Set

	// External is an optional additional event source merged into the
	// Ingestor's dispatch path alongside fsnotify — see pkg/syncthing.
	External <-chan FsEvent

	Registry *Registry
	rawBus   *EventBus
}

// NewSupervisor builds a Supervisor for one watched root.
func NewSupervisor(root string, scripts script.Set, window time.Duration) *Supervisor {
	return &Supervisor{
		Root:     root,
		Window:   window,
		Scripts:  scripts,
		Registry: NewRegistry(),
		rawBus:   NewEventBus(channelCapacity),
	}
}

// Run implements spec.md §4.6: open the raw watch, wire the Ingestor,
// Subscriber, and unsubscribe task together, and run them concurrently
// until the context is cancelled or any one of them returns. The first
// non-nil error is returned. unsubCh carries the unsubscribes for this
// root; pkg/supervisor routes each of the Script Runner's unsubscribes to
// the channel of the root it lies under.
func (sup *Supervisor) Run(ctx context.Context, unsubCh <-chan string, runCh chan<- RunMessage) error {
	subCh := make(chan subscription, channelCapacity)
	subscriber := NewSubscriber(sup.Registry, sup.rawBus, runCh, sup.Window)

	ing, err := NewIngestor(sup.Root, sup.Scripts, sup.rawBus, subCh, sup.External)
	if err != nil {
		return fmt.Errorf("watcher %s: opening raw watch: %w", sup.Root, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := ctx.Done()

	g.Go(func() error { defer cancel(); return ing.Run(stop) })
	g.Go(func() error { defer cancel(); return subscriber.Run(subCh, stop) })
	g.Go(func() error { defer cancel(); return subscriber.RunUnsubscribe(sup.Root, unsubCh, stop) })

	err = g.Wait()
	sup.rawBus.Close()
	if err != nil {
		return fmt.Errorf("watcher %s: %w", sup.Root, err)
	}
	return nil
}
