package syncthing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"rusty-hooks/pkg/script"
	"rusty-hooks/pkg/watcher"
)

// maxSeen is the seen-ID retention cap from original_source's
// SyncthingApi::update_seen: once the tracked id list exceeds this length,
// the oldest entries are trimmed off, bounding memory for a long-running
// poller.
const maxSeen = 100

// pollInterval governs how often the poller asks Syncthing for new events.
const pollInterval = 2 * time.Second

// maxConsecutiveFailures mirrors spec.md §7's escalation rule (the same
// threshold pkg/watcher's Ingestor and Subscriber use): more than this many
// consecutive failures promotes a local, retried error to fatal, per
// SPEC_FULL.md §12's "promoted to fatal only after 5 consecutive failures"
// requirement for Syncthing auth/connection errors.
const maxConsecutiveFailures = 5

// errTooManyConsecutiveFailures is returned by Run once polling has failed
// more than maxConsecutiveFailures times in a row, escalating through the
// errgroup the Process Supervisor runs every Poller under.
var errTooManyConsecutiveFailures = errors.New("syncthing: exceeded consecutive poll failure limit")

// Poller periodically fetches LocalIndexUpdated events for one configured
// folder and republishes them as watcher.FsEvent on out, using root to
// resolve each filename into an absolute path under the watched directory.
// Grounded on original_source/src/syncthing/api.rs's SyncthingApi::update:
// fetch, filter to LocalIndexUpdated, track last_seen as the high-water
// mark for the next `since` query.
type Poller struct {
	client   *Client
	cfg      Config
	root     string
	out      chan<- watcher.FsEvent
	interval time.Duration

	seen     []int
	lastSeen int
}

// NewPoller builds a Poller publishing onto out for the watch root rooted
// at root, polling every pollInterval (tests shrink the unexported interval
// field directly to exercise Run's escalation behavior without waiting out
// the production cadence).
func NewPoller(cfg Config, root string, out chan<- watcher.FsEvent) *Poller {
	return &Poller{
		client:   NewClient(cfg),
		cfg:      cfg,
		root:     root,
		out:      out,
		interval: pollInterval,
	}
}

// Run polls until ctx is cancelled. A single fetch failure is logged and
// retried on the next tick — Syncthing being transiently unreachable is
// not fatal to the rest of the pipeline, matching spec.md §7's general
// "local errors are logged and loop-retried" policy — but more than
// maxConsecutiveFailures in a row escalates to fatal per SPEC_FULL.md §12,
// the same local-then-escalating shape spec.md §7 gives SubscriptionError.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				consecutiveErrors++
				slog.Error("syncthing: poll failed", "folder", p.cfg.FolderID, "error", err, "consecutive", consecutiveErrors)
				if consecutiveErrors > maxConsecutiveFailures {
					return errTooManyConsecutiveFailures
				}
				continue
			}
			consecutiveErrors = 0
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	events, err := p.client.Events(ctx, p.lastSeen)
	if err != nil {
		return err
	}

	var newIDs []int
	for _, ev := range events {
		if ev.Type != "LocalIndexUpdated" {
			continue
		}
		var payload LocalIndexUpdated
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			slog.Error("syncthing: malformed LocalIndexUpdated payload", "error", err)
			continue
		}
		if payload.Folder != p.cfg.FolderID {
			continue
		}
		newIDs = append(newIDs, ev.ID)
		p.publish(ctx, payload)
	}
	if len(newIDs) > 0 {
		p.updateSeen(newIDs)
	}
	return nil
}

// publish maps a LocalIndexUpdated event's filenames to absolute paths
// under root and sends one FsEvent covering all of them, tagged Modify —
// the same trigger kind the Ingestor uses for an fsnotify rename-to
// completion, since both signal "this file's content is now settled". The
// send blocks (subject to ctx cancellation) rather than dropping on a full
// channel, matching spec.md §5's no-dropped-message back-pressure rule for
// every other inter-stage channel in this pipeline.
func (p *Poller) publish(ctx context.Context, payload LocalIndexUpdated) {
	if len(payload.Filenames) == 0 {
		return
	}
	paths := make([]string, 0, len(payload.Filenames))
	for _, name := range payload.Filenames {
		paths = append(paths, filepath.Join(p.root, name))
	}
	select {
	case p.out <- watcher.FsEvent{Kind: script.EventModify, Paths: paths}:
	case <-ctx.Done():
	}
}

// updateSeen mirrors SyncthingApi::update_seen: merge newly observed ids,
// trim to maxSeen, and advance lastSeen to the highest id seen so far so
// the next poll's `since` query doesn't refetch them.
func (p *Poller) updateSeen(newIDs []int) {
	p.seen = append(p.seen, newIDs...)
	if len(p.seen) > maxSeen {
		slog.Info("syncthing: trimming seen id list", "length", len(p.seen))
		p.seen = p.seen[len(p.seen)-maxSeen:]
	}
	if len(p.seen) > 0 {
		p.lastSeen = p.seen[len(p.seen)-1]
	}
}
