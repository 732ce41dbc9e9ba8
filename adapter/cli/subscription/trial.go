package subscription

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Start the free trial",
	Long: `Subscribe the lab to the trial plan.

A lab whose current subscription is trial, active or awaiting payment
cannot start another trial.

Examples:
  pathlab subscription trial`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}

		trial, err := app.Lifecycle.StartTrial(cmd.Context(), app.CurrentLabID)
		if err != nil {
			return wrap("start trial", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Trial started: %s\n", trial.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  ends: %s\n", trial.EndDate.Local().Format(dateFormat))
		return nil
	},
}
