// Package supervisor implements the Process Supervisor (C7): it owns one
// Script Runner and one Health Reporter shared across every configured
// watch root, one Watcher Supervisor per root, and joins all of their
// lifecycles.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"rusty-hooks/pkg/config"
	"rusty-hooks/pkg/configwatch"
	"rusty-hooks/pkg/health"
	"rusty-hooks/pkg/runner"
	"rusty-hooks/pkg/syncthing"
	"rusty-hooks/pkg/watcher"
)

// unsubscribeCapacity, runCapacity, and syncthingCapacity match the
// bounded-16 rule spec.md §5 applies to every inter-stage channel.
const (
	unsubscribeCapacity = 16
	runCapacity         = 16
	syncthingCapacity   = 16
)

// Options configures the Process Supervisor's tunables (spec.md §4.1/§4.5:
// debounce window and runner worker count, plus the Health Reporter's
// logging interval, are the only knobs exposed beyond the config file
// itself).
type Options struct {
	DebounceWindow time.Duration
	RunnerWorkers  int
	HealthInterval time.Duration
}

// Run implements spec.md §4.7: build one Supervisor per watch root sharing
// a single Script Runner and Health Reporter, then run everything
// concurrently via a selective wait, returning the first non-nil error.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	unsubCh := make(chan string, unsubscribeCapacity)
	runCh := make(chan watcher.RunMessage, runCapacity)

	roots := make([]string, 0, len(cfg.Roots))
	watchers := make([]*watcher.Supervisor, 0, len(cfg.Roots))
	rootUnsubCh := make(map[string]chan string, len(cfg.Roots))
	pollers := make([]*syncthing.Poller, 0)
	for _, root := range cfg.Roots {
		roots = append(roots, root.Path)
		w := watcher.NewSupervisor(root.Path, root.Scripts, opts.DebounceWindow)
		rootUnsubCh[root.Path] = make(chan string, unsubscribeCapacity)

		if root.Syncthing != nil {
			extCh := make(chan watcher.FsEvent, syncthingCapacity)
			w.External = extCh
			pollers = append(pollers, syncthing.NewPoller(syncthing.Config{
				Address:  root.Syncthing.Address,
				Port:     root.Syncthing.Port,
				AuthKey:  root.Syncthing.AuthKey,
				FolderID: root.Syncthing.FolderID,
			}, root.Path, extCh))
		}

		watchers = append(watchers, w)
	}

	if hash, ok := config.HeadCommit(cfg.ScriptFolder); ok {
		slog.Info("process supervisor: starting", "script_folder", cfg.ScriptFolder, "head_commit", hash, "roots", len(roots))
	} else {
		slog.Info("process supervisor: starting", "script_folder", cfg.ScriptFolder, "roots", len(roots))
	}

	scriptRunner := runner.New(opts.RunnerWorkers, unsubCh)
	reporter := health.New(opts.HealthInterval, roots)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return scriptRunner.Run(ctx, runCh) })
	g.Go(func() error { return reporter.Run(ctx) })
	g.Go(func() error { return routeUnsubscribes(ctx, unsubCh, rootUnsubCh) })

	// configwatch is diagnostic-only (spec.md's Non-goals exclude
	// hot-reload, SPEC_FULL.md §13): a failure to set up its watch is
	// logged, never allowed to cancel the rest of the process.
	if cfg.ConfigPath != "" {
		if cw, err := configwatch.New(cfg.ConfigPath, cfg.ScriptFolder); err != nil {
			slog.Error("configwatch: setup failed", "path", cfg.ConfigPath, "error", err)
		} else {
			go func() {
				if err := cw.Run(ctx); err != nil {
					slog.Error("configwatch: stopped", "error", err)
				}
			}()
		}
	}
	for _, w := range watchers {
		w := w
		rc := rootUnsubCh[w.Root]
		g.Go(func() error { return w.Run(ctx, rc, runCh) })
	}
	for _, p := range pollers {
		p := p
		g.Go(func() error { return p.Run(ctx) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("process supervisor: %w", err)
	}
	return nil
}

// routeUnsubscribes implements spec.md §5's unsubscribe channel: the Script
// Runner publishes every completed firing's HomeDir onto one channel shared
// across every watch root (spec.md §4.5c), and spec.md §4.4.2 describes the
// message as one that "may belong to any Watcher." Handing that single
// shared channel directly to every root's RunUnsubscribe task would make
// them compete as independent receivers on a plain Go channel — a message
// for root B can be won by root A's receive, which then filters it out via
// watcher.UnderRoot and drops it, leaking root B's Registry entry forever.
// Routing here, once, to the one root the path actually lies under removes
// the race: each root gets its own dedicated, un-contended channel.
func routeUnsubscribes(ctx context.Context, in <-chan string, out map[string]chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-in:
			if !ok {
				return nil
			}
			for root, ch := range out {
				if !watcher.UnderRoot(path, root) {
					continue
				}
				select {
				case ch <- path:
				case <-ctx.Done():
					return nil
				}
				break
			}
		}
	}
}
