// Command pulsed runs the Pulse orchestration core as a standalone
// daemon: background passes on a timer instead of an OS background
// hook, notifications to the log. Useful for development and for
// headless deployments.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halcyon-health/pulse"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("PULSE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	app, err := pulse.New(
		pulse.WithLogger(logger),
		pulse.WithVersion(version),
	)
	if err != nil {
		return err
	}
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	every := 15 * time.Minute
	if v := os.Getenv("PULSE_BACKGROUND_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			every = d
		}
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("pulsed running", "background_every", every)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report := app.ExecuteBackgroundTask(ctx)
			logger.Info("background pass",
				"agents_run", report.AgentsRun,
				"triggers_fired", report.TriggersFired,
				"elapsed", report.Elapsed,
				"budget_exceeded", report.BudgetExceeded)
		}
	}
}
