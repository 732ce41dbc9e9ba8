package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the expiry sweep now",
	Long: `Expire lapsed subscriptions, downgrading expired trials to the free
plan and deactivating labs whose paid plan ran out. The sweep is skipped
when another process is already running one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}
		if app.SweepWorker == nil {
			return errors.New("expiry sweep not configured")
		}

		report, ran, err := app.SweepWorker.RunOnce(cmd.Context())
		if err != nil {
			return wrap("run expiry sweep", err)
		}
		if !ran {
			fmt.Fprintln(cmd.OutOrStdout(), "Sweep skipped: another sweep is running.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sweep finished in %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
		fmt.Fprintf(out, "  examined:    %d\n", report.Examined)
		fmt.Fprintf(out, "  expired:     %d\n", report.Expired)
		fmt.Fprintf(out, "  downgraded:  %d\n", report.Downgraded)
		fmt.Fprintf(out, "  deactivated: %d\n", report.Deactivated)
		fmt.Fprintf(out, "  superseded:  %d\n", report.Superseded)
		fmt.Fprintf(out, "  skipped:     %d\n", report.Skipped)
		for _, failure := range report.Failures {
			fmt.Fprintf(out, "  failed: lab %s subscription %s: %v\n", failure.LabID, failure.SubscriptionID, failure.Err)
		}
		if len(report.Failures) > 0 {
			return fmt.Errorf("sweep finished with %d failures", len(report.Failures))
		}
		return nil
	},
}
