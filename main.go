package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rusty-hooks/pkg/config"
	"rusty-hooks/pkg/lockfile"
	"rusty-hooks/pkg/logging"
	"rusty-hooks/pkg/supervisor"
)

// Config holds the application's parsed CLI flags (spec.md §6 CLI).
type Config struct {
	ScriptFolder string
	LogLevel     string
}

func main() {
	cfg := &Config{}
	flag.StringVar(&cfg.ScriptFolder, "script-folder", "", "Directory containing exactly one scripts.yml (required)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: off|error|warn|info|debug|trace")
	flag.Parse()

	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "argument error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logging.Setup(logging.Options{Format: "text", Level: cfg.LogLevel}, os.Stdout)

	lockPath, err := lockfile.DefaultPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to determine lockfile path: %v\n", err)
		os.Exit(1)
	}
	lf, err := lockfile.Acquire(lockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to acquire lock: %v\n", err)
		os.Exit(1)
	}
	defer lf.Release()

	loaded, err := config.Load(cfg.ScriptFolder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := supervisor.Options{
		DebounceWindow: 10 * time.Second,
		RunnerWorkers:  4,
		HealthInterval: 30 * time.Second,
	}

	if err := supervisor.Run(ctx, loaded, opts); err != nil {
		fmt.Fprintf(os.Stderr, "runtime failure: %v\n", err)
		os.Exit(1)
	}
}

// validateConfig implements spec.md §6's exit-code-2 contract: a missing
// required argument is always a clean usage error, never a panic (spec.md
// §9's resolved Open Question on CLI argument handling).
func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.ScriptFolder) == "" {
		return fmt.Errorf("--script-folder is required")
	}
	return nil
}
