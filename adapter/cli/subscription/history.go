package subscription

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List every subscription of the lab",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}

		subs, err := app.Lifecycle.History(cmd.Context(), app.CurrentLabID)
		if err != nil {
			return wrap("load history", err)
		}
		if len(subs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No subscriptions found.")
			return nil
		}

		plans, err := app.Lifecycle.ListPlans(cmd.Context())
		if err != nil {
			return wrap("list plans", err)
		}
		names := make(map[string]string, len(plans))
		for _, plan := range plans {
			names[plan.ID.String()] = plan.Name
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Subscriptions (%d):\n", len(subs))
		for _, sub := range subs {
			name, ok := names[sub.PlanID.String()]
			if !ok {
				name = sub.PlanID.String()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s  %-10s %-16s %s to %s\n",
				sub.ID, name, sub.Status,
				sub.StartDate.Local().Format(dateFormat), sub.EndDate.Local().Format(dateFormat))
		}
		return nil
	},
}
