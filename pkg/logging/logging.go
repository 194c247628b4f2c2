// Package logging configures the process-wide slog logger.
//
// Setup mirrors the teacher's main.go setupLogger (a level-name-to-slog.Level
// map, a format flag choosing between slog's stock handlers). What's added
// here is fieldHandler, a thin slog.Handler wrapper that guarantees every
// line carries pid= and src= regardless of which stock handler is doing the
// actual formatting underneath — the teacher's log lines don't need a fixed
// contract, ours do. The timestamp, level and message keep slog's stock key
// names (time=, level=, msg=); they are not renamed to ts= or message=.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Options controls logger construction, mirroring the teacher's Config
// fields (LogFormat, LogLevel). The process ID is not an option; Setup reads
// it from os.Getpid.
type Options struct {
	Format string // "text" or "json"
	Level  string // "off", "error", "warn", "info", "debug", "trace"
}

var levelNames = map[string]slog.Level{
	"trace": slog.LevelDebug - 4,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"off":   slog.LevelError + 4,
}

// ParseLevel resolves a CLI-facing level name to an slog.Level, defaulting
// to info on an unrecognized name (same default-on-miss behavior as the
// teacher's setupLogger).
func ParseLevel(name string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(name)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Setup builds and installs the default slog logger for the process.
func Setup(opts Options, w *os.File) {
	level := ParseLevel(opts.Level)
	var inner slog.Handler
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(opts.Format, "json") {
		inner = slog.NewJSONHandler(w, handlerOpts)
	} else {
		inner = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(&fieldHandler{inner: inner, pid: os.Getpid()}))
}

// fieldHandler stamps every record with pid= and src= attributes, no matter
// which stock handler does the rendering. It adds no other fields and
// renames none.
type fieldHandler struct {
	inner slog.Handler
	pid   int
}

func (h *fieldHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *fieldHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(slog.Int("pid", h.pid))
	if _, file, line, ok := callerInfo(); ok {
		r.AddAttrs(slog.String("src", fmt.Sprintf("%s:%d", file, line)))
	}
	return h.inner.Handle(ctx, r)
}

func (h *fieldHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fieldHandler{inner: h.inner.WithAttrs(attrs), pid: h.pid}
}

func (h *fieldHandler) WithGroup(name string) slog.Handler {
	return &fieldHandler{inner: h.inner.WithGroup(name), pid: h.pid}
}

// callerInfo walks past the slog and fieldHandler frames to find the first
// caller outside this package.
func callerInfo() (string, string, int, bool) {
	var pcs [16]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "pkg/logging") && !strings.Contains(frame.File, "log/slog") {
			return frame.Function, filepath.Base(frame.File), frame.Line, true
		}
		if !more {
			break
		}
	}
	return "", "", 0, false
}
