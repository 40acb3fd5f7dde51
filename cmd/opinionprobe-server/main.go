package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/opinionprobe/api"
	"github.com/use-agent/opinionprobe/api/handler"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/orchestrator"
	"github.com/use-agent/opinionprobe/report"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	config.InitLogger(cfg.Log, os.Stdout)
	slog.Info("opinionprobe server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"sessionMode", cfg.Remote.Mode,
	)

	if cfg.Remote.Mode == config.ModeRemote && cfg.Remote.HasPlaceholderCredentials() {
		slog.Error("BROWSERSTACK_USERNAME and BROWSERSTACK_ACCESS_KEY must be set in remote mode")
		os.Exit(1)
	}

	// ── 3. Targets and runner ───────────────────────────────────────
	targets, err := config.LoadTargets(cfg.Orchestrator.TargetsFile)
	if err != nil {
		slog.Error("failed to load targets", "error", err)
		os.Exit(1)
	}

	runner, cleanup, err := orchestrator.Build(cfg)
	if err != nil {
		cleanup()
		slog.Error("failed to initialise runner", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// ── 4. Report sinks ─────────────────────────────────────────────
	sinks := report.BuildSinks(cfg.Report)
	defer report.CloseAll(sinks)

	// ── 5. Setup router ─────────────────────────────────────────────
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	startTime := time.Now()
	runs := handler.NewRuns(bgCtx, runner, targets, sinks, time.Hour)
	router := api.NewRouter(bgCtx, cfg, runner, runs, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Runs already started finish before the browser is torn down.
	slog.Info("waiting for active runs", "active", runs.ActiveRuns())
	runs.Wait()
	slog.Info("opinionprobe server stopped")
}
