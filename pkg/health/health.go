// Package health implements the Health Reporter (C8): a periodic liveness
// log line, nothing more (spec.md §2 C8 — "Periodic liveness log at fixed
// interval").
package health

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is used when Reporter is built with a non-positive
// interval.
const DefaultInterval = 30 * time.Second

// Reporter periodically logs that the process is alive. Grounded on the
// teacher's pkg/events hub shape (a single ticker-driven goroutine); this
// component has no analogue to adapt line-for-line since the teacher never
// needed a liveness heartbeat, so it is written fresh in the teacher's
// idiom of small, single-purpose, ticker-driven goroutines.
type Reporter struct {
	interval time.Duration
	roots    []string
}

// New builds a Reporter that logs once every interval, naming the watched
// roots it is reporting on.
func New(interval time.Duration, roots []string) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{interval: interval, roots: roots}
}

// Run logs a liveness line immediately and then once per interval until ctx
// is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	start := time.Now()
	slog.Info("health: watching", "roots", r.roots)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			slog.Info("health: alive", "uptime", time.Since(start).Truncate(time.Second), "roots", len(r.roots))
		}
	}
}
