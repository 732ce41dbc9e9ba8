package subscription

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelStrict bool

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the current subscription",
	Long: `Cancel the lab's current subscription and deactivate the lab.
Cancelling a lab without an active subscription does nothing unless
--strict is given.

Examples:
  pathlab subscription cancel
  pathlab subscription cancel --strict`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}

		cancel := app.Lifecycle.Cancel
		if cancelStrict {
			cancel = app.Lifecycle.CancelStrict
		}
		if err := cancel(cmd.Context(), app.CurrentLabID); err != nil {
			return wrap("cancel subscription", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Subscription cancelled.")
		return nil
	},
}

func init() {
	cancelCmd.Flags().BoolVar(&cancelStrict, "strict", false, "fail when there is nothing to cancel")
}
