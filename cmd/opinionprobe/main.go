package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/orchestrator"
	"github.com/use-agent/opinionprobe/report"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	config.InitLogger(cfg.Log, os.Stderr)

	// ── 2. Credential guard ─────────────────────────────────────────
	if cfg.Remote.Mode == config.ModeRemote && cfg.Remote.HasPlaceholderCredentials() {
		fmt.Println()
		fmt.Println("⚠ WARNING: Please set BROWSERSTACK_USERNAME and BROWSERSTACK_ACCESS_KEY environment variables")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Printf("  export BROWSERSTACK_USERNAME='%s'\n", config.PlaceholderUsername)
		fmt.Printf("  export BROWSERSTACK_ACCESS_KEY='%s'\n", config.PlaceholderAccessKey)
		os.Exit(1)
	}

	// ── 3. Resolve targets ──────────────────────────────────────────
	targets, err := config.LoadTargets(cfg.Orchestrator.TargetsFile)
	if err != nil {
		slog.Error("failed to load targets", "error", err)
		os.Exit(1)
	}

	// ── 4. Wire the runner ──────────────────────────────────────────
	runner, cleanup, err := orchestrator.Build(cfg)
	if err != nil {
		cleanup()
		slog.Error("failed to initialise runner", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.Info("opinionprobe starting",
		"mode", cfg.Remote.Mode,
		"targets", len(targets),
		"maxWorkers", runner.Workers(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 5. Run every configuration ──────────────────────────────────
	rep := runner.Run(ctx, targets)

	if err := report.WriteDetails(os.Stdout, rep); err != nil {
		slog.Error("failed to write report", "error", err)
	}
	if err := report.WriteSummary(os.Stdout, rep); err != nil {
		slog.Error("failed to write summary", "error", err)
	}

	// ── 6. Publish to optional sinks ────────────────────────────────
	sinks := report.BuildSinks(cfg.Report)
	if len(sinks) > 0 {
		pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		_ = report.Publish(pubCtx, sinks, rep)
		cancel()
		report.CloseAll(sinks)
	}
}
