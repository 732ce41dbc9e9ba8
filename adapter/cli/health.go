package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNotInitialized = errors.New("no database connection; run with DATABASE_URL or SQLITE_PATH set")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the plan catalog can be read",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if app == nil || app.Lifecycle == nil {
			return errNotInitialized
		}
		plans, err := app.Lifecycle.ListPlans(cmd.Context())
		if err != nil {
			return fmt.Errorf("plan catalog unavailable: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok (%d plans)\n", len(plans))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
