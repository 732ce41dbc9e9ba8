package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sohel7709/pathlab/pkg/observability"
)

var (
	verbose bool
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pathlab",
	Short: "PathLab - subscription lifecycle for pathology labs",
	Long: `PathLab manages the subscription lifecycle of pathology labs:
trials, paid plans, payment confirmation, cancellation and the
daily expiry sweep that downgrades or deactivates lapsed labs.`,
	SilenceUsage:      true,
	PersistentPreRun:  beginCommand,
	PersistentPostRun: endCommand,
}

type startedAtKey struct{}

func cliLogger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// beginCommand gives the invocation a correlation ID. Events written by
// the command carry it in their metadata.
func beginCommand(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithCorrelationID(ctx, uuid.NewString())
	ctx = context.WithValue(ctx, startedAtKey{}, time.Now())
	cmd.SetContext(ctx)
	cliLogger().DebugContext(ctx, "command start", "command", cmd.CommandPath())
}

// endCommand delivers the events the command wrote, when this process is
// responsible for them, and logs how long the command took.
func endCommand(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()
	drainOutbox(ctx)

	if started, ok := ctx.Value(startedAtKey{}).(time.Time); ok {
		cliLogger().DebugContext(ctx, "command end",
			"command", cmd.CommandPath(),
			observability.DurationKey, time.Since(started).Milliseconds(),
		)
	}
}

// drainOutbox publishes pending events once. Failures stay in the outbox
// for the next command or the worker.
func drainOutbox(ctx context.Context) {
	if app == nil || app.Outbox == nil {
		return
	}
	if err := app.Outbox.ProcessOnce(ctx); err != nil {
		cliLogger().WarnContext(ctx, "outbox drain failed", "error", err)
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Verbose reports whether --verbose was passed.
func Verbose() bool {
	return verbose
}

// AddCommand registers a subcommand.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}
