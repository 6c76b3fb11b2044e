// Command epistemic-core runs the epistemic coordination engine as a
// long-lived, in-process server (spec.md §1). It owns the one Engine
// instance for the process, starts the background maintenance
// scheduler, and blocks until signaled.
//
// The core has no transport of its own (spec.md §1 Non-goals exclude
// HTTP/RPC); callers reach it by embedding this module and invoking
// engine.Macro directly, or a separate transport process can sit in
// front of it. This command exists to prove out the wiring end to end
// and to run maintenance unattended.
//
// Optional environment variables:
//
//	EPISTEMIC_CONFIG              - path to a TOML config file
//	EPISTEMIC_LOG_LEVEL           - debug, info, warn, error (default: info)
//	EPISTEMIC_CRON_ENABLED        - true/1 to run background maintenance
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/emergent-company/epistemic-core/internal/config"
	"github.com/emergent-company/epistemic-core/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "epistemic-core: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := engine.New(cfg, logger, nil)

	logger.Info("starting epistemic-core",
		"version", version,
		"domains", eng.Macro.Domains(),
		"cron_enabled", cfg.Cron.Enabled,
	)

	eng.Start(ctx)
	defer eng.Stop()

	<-ctx.Done()
	logger.Info("shutting down epistemic-core")
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
