// Command worker runs the PathLab background processes: the daily expiry
// sweep and the outbox relay, plus health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sohel7709/pathlab/internal/app"
	"github.com/sohel7709/pathlab/pkg/config"
	"github.com/sohel7709/pathlab/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logConfig := observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	logConfig.Component = "worker"
	logger := observability.NewLogger(logConfig)
	logger.Info("starting pathlab worker",
		"driver", cfg.DatabaseDriver,
		"sweep_enabled", cfg.SweepEnabled,
		"outbox_enabled", cfg.OutboxProcessorEnabled,
	)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer container.Close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			return fmt.Errorf("start outbox processor: %w", err)
		}
		g.Go(func() error {
			reportOutbox(ctx, container, cfg.OutboxStatsInterval)
			return nil
		})
	}

	if cfg.SweepEnabled {
		g.Go(func() error {
			if err := container.SweepWorker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if cfg.WorkerHealthAddr != "" {
		srv := newHealthServer(cfg.WorkerHealthAddr, container)
		g.Go(func() error {
			logger.Info("health server listening", "addr", cfg.WorkerHealthAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	container.SweepWorker.Stop()
	container.OutboxProcessor.Stop()

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

// reportOutbox logs the relay's counters and exports its lag until ctx is
// done.
func reportOutbox(ctx context.Context, container *app.Container, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := container.OutboxProcessor.GetStats()
			container.Metrics.Gauge(observability.MetricOutboxLag, stats.LagSeconds)
			container.Logger.Info("outbox stats",
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
				"lag_seconds", stats.LagSeconds,
				"last_error", stats.LastError,
			)
		}
	}
}
