package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/adapter/cli"
	"github.com/sohel7709/pathlab/adapter/cli/subscription"
	"github.com/sohel7709/pathlab/internal/app"
	"github.com/sohel7709/pathlab/pkg/config"
	"github.com/sohel7709/pathlab/pkg/observability"
)

func main() {
	// Create context with cancellation
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// The CLI logs warnings only unless LOG_LEVEL asks for more.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logConfig := observability.LogConfigFor(cfg.AppEnv, level, cfg.LogFormat)
	logConfig.Component = "cli"
	logger := observability.NewLogger(logConfig)
	cli.SetLogger(logger)

	// Try to initialize the full container
	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// In development, allow version and help without a database.
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		labID, err := uuid.Parse(cfg.LabID)
		if err != nil {
			logger.Error("invalid PATHLAB_LAB_ID", "error", err)
			os.Exit(1)
		}
		if cfg.LocalMode {
			if _, err := container.EnsureLocalLab(ctx); err != nil {
				logger.Error("failed to register local lab", "error", err)
				os.Exit(1)
			}
		}

		cliApp = cli.NewApp(container.Lifecycle, container.Entitlements, container.SweepWorker)
		cliApp.SetCurrentLabID(labID)
		if cfg.LocalMode || !cfg.OutboxProcessorEnabled {
			cliApp.SetOutbox(container.OutboxProcessor)
		}
	}

	// Set the CLI app
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(subscription.Cmd)

	// Execute CLI
	cli.Execute(ctx)
}
