package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}

		current, err := app.Lifecycle.GetCurrent(cmd.Context(), app.CurrentLabID)
		if errors.Is(err, domain.ErrNoActiveSubscription) {
			fmt.Fprintln(cmd.OutOrStdout(), "No active subscription.")
			return nil
		}
		if err != nil {
			return wrap("load subscription", err)
		}

		printSubscription(cmd.OutOrStdout(), current.Subscription, current.Plan)
		if current.Subscription.Status.GrantsAccess() {
			fmt.Fprintf(cmd.OutOrStdout(), "  days left: %d\n", daysLeft(current.Subscription, time.Now()))
		}
		return nil
	},
}
