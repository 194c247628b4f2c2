// Package runner implements the Script Runner (C5): it receives
// ready-to-run messages, launches the bound scripts in parallel with
// per-script delays, and, once a firing's scripts all complete, releases
// the HomeDir back through the unsubscribe channel.
package runner

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rusty-hooks/pkg/script"
	"rusty-hooks/pkg/watcher"
)

// unsubscribeSendTimeout bounds a single attempt to publish a HomeDir on
// the unsubscribe channel. The channel is a bounded broadcast channel
// (spec.md §5); a send that cannot complete within this window is treated
// as the "send fails" case spec.md §4.5.c asks the runner to retry.
const unsubscribeSendTimeout = 2 * time.Second

// maxUnsubscribeRetries is the retry ceiling from spec.md §4.5.c and
// §9's resolved Open Question (a bounded loop, not unbounded recursion).
const maxUnsubscribeRetries = 5

// Runner is the Script Runner, C5. Grounded on colebrumley-srvrmgr's
// internal/executor/claude.go Execute/ExecuteWithMemory (exec.CommandContext,
// CombinedOutput-style capture, Result{State,Output,Error,Duration}), and on
// the same repo's daemon.go selective-wait shutdown for the overall
// control loop shape (errgroup.WithContext, first error cancels the rest).
type Runner struct {
	workers int
	unsubCh chan<- string
}

// New builds a Runner with the given worker pool size (spec.md §4.5:
// default 4) publishing unsubscribes onto unsubCh, the single channel
// shared by every watch root; pkg/supervisor reads it and forwards each
// path to the unsubscribe task of the root it lies under.
func New(workers int, unsubCh chan<- string) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{workers: workers, unsubCh: unsubCh}
}

// Run is the control loop of spec.md §4.5: receive (HomeDir, scripts),
// spawn a firing-handling task per message bounded by the worker pool, and
// terminate when runCh closes. A firing task that exhausts its unsubscribe
// retries is the one fatal condition this loop surfaces — every other
// per-script failure is local and logged, never propagated (spec.md §7
// ScriptError is always local).
func (r *Runner) Run(ctx context.Context, runCh <-chan watcher.RunMessage) error {
	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, r.workers)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-runCh:
			if !ok {
				break loop
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break loop
			}
			g.Go(func() error {
				defer func() { <-sem }()
				return r.handleFiring(ctx, msg)
			})
		}
	}
	return g.Wait()
}

// handleFiring implements spec.md §4.5 step 2: launch every bound script
// concurrently with its own delay, wait for all of them, then unsubscribe.
func (r *Runner) handleFiring(ctx context.Context, msg watcher.RunMessage) error {
	runID := uuid.NewString()
	scripts := orderedScripts(msg.Scripts)

	slog.Debug("runner: firing", "home_dir", msg.HomeDir, "run_id", runID, "scripts", len(scripts))

	var wg errgroup.Group
	for _, sc := range scripts {
		sc := sc
		wg.Go(func() error {
			runScript(ctx, msg.HomeDir, sc, runID)
			return nil
		})
	}
	_ = wg.Wait() // per-script failures are logged inside runScript, never aggregated

	return r.unsubscribe(ctx, msg.HomeDir, runID)
}

// orderedScripts returns scripts sorted by run_delay ascending, then
// original declaration order (stable) — spec.md §5's ordering guarantee
// for script launches within one firing.
func orderedScripts(scripts []script.Script) []script.Script {
	out := make([]script.Script, len(scripts))
	copy(out, scripts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RunDelay < out[j].RunDelay })
	return out
}

// runScript sleeps run_delay seconds, then executes the script against the
// canonicalized HomeDir, capturing stdout/stderr/exit status (spec.md §4.5
// step a, §6 Child-process contract). A spawn error or non-zero exit is a
// local ScriptError (spec.md §7): logged, never returned.
func runScript(ctx context.Context, homeDir string, sc script.Script, runID string) {
	delay := time.Duration(sc.RunDelay) * time.Second
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	canonical, err := filepath.Abs(homeDir)
	if err != nil {
		canonical = homeDir
	}

	cmd := exec.CommandContext(ctx, sc.FilePath, canonical)
	cmd.Dir = filepath.Dir(sc.FilePath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	fields := []any{
		"run_id", runID, "script", sc.Name, "home_dir", canonical, "duration", duration,
	}
	if err != nil {
		slog.Error("runner: script failed", append(fields, "error", err, "stderr", stderr.String())...)
		return
	}
	slog.Debug("runner: script completed", append(fields, "stdout", stdout.String())...)
}

// unsubscribe implements spec.md §4.5 step c: publish homeDir on the
// unsubscribe channel, retrying up to maxUnsubscribeRetries times on a
// full/unresponsive channel before surfacing a fatal error.
func (r *Runner) unsubscribe(ctx context.Context, homeDir, runID string) error {
	attempt := 0
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	bo := backoff.WithMaxRetries(backoff.WithContext(eb, ctx), maxUnsubscribeRetries)

	err := backoff.Retry(func() error {
		attempt++
		select {
		case r.unsubCh <- homeDir:
			return nil
		case <-time.After(unsubscribeSendTimeout):
			return errUnsubscribeSendTimeout
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
	}, bo)

	if err != nil {
		slog.Error("runner: unsubscribe exhausted retries", "home_dir", homeDir, "run_id", runID, "attempts", attempt, "error", err)
		return watcher.ErrUnsubscribeExhausted
	}
	slog.Debug("runner: unsubscribe published", "home_dir", homeDir, "run_id", runID, "attempts", attempt)
	return nil
}
