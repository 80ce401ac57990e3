// The scheduler is a minute ticker: it wakes at the top of every minute,
// evaluates the cron table, and fires matching targets against the server's
// job endpoints. It holds no state; a missed minute is simply not fired.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/config"
	infrahttp "github.com/melodex/melodex/internal/infrastructure/http"
	"github.com/melodex/melodex/internal/observability"
)

const defaultServiceName = "melodex-scheduler"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadSchedulerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serviceName := cfg.Observability.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	lp, logger, err := observability.InitLogger(ctx, serviceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown logger provider", "error", err)
		}
	}()
	slog.SetDefault(logger)

	invoker := infrahttp.NewJobInvoker(cfg.TargetURL, cfg.APIToken, cfg.RequestTimeout)
	schedule := queue.NewSchedule(queue.DefaultSchedule(), invoker)

	slog.InfoContext(ctx, "scheduler started", "target_url", cfg.TargetURL)

	for {
		if err := sleepUntilNextMinute(ctx); err != nil {
			slog.InfoContext(ctx, "scheduler stopped")
			return nil
		}
		now := time.Now().UTC()
		fired := schedule.Tick(ctx, now)
		slog.InfoContext(ctx, "schedule tick evaluated",
			"minute", now.Truncate(time.Minute),
			"fired", fired)
	}
}

// sleepUntilNextMinute blocks until the next minute boundary or context
// cancellation. Aligning to the boundary keeps exact-minute patterns honest
// regardless of process start time.
func sleepUntilNextMinute(ctx context.Context) error {
	now := time.Now().UTC()
	next := now.Truncate(time.Minute).Add(time.Minute)
	timer := time.NewTimer(next.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
