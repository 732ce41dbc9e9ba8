package subscription

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sohel7709/pathlab/internal/subscription/application"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the plan catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}

		plans, err := app.Lifecycle.ListPlans(cmd.Context())
		if err != nil {
			return wrap("list plans", err)
		}
		if len(plans) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No plans configured.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Plans (%d):\n", len(plans))
		for _, plan := range plans {
			state := ""
			if !plan.Active {
				state = " [inactive]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %10s %s / %d days%s\n",
				plan.Name, plan.Price.StringFixed(2), plan.Currency, plan.DurationDays, state)
		}
		return nil
	},
}

// findPlan looks a plan up by name, ignoring case.
func findPlan(ctx context.Context, lifecycle *application.LifecycleService, name string) (*domain.Plan, error) {
	plans, err := lifecycle.ListPlans(ctx)
	if err != nil {
		return nil, wrap("list plans", err)
	}
	for _, plan := range plans {
		if strings.EqualFold(plan.Name, strings.TrimSpace(name)) {
			return plan, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrPlanNotFound, name)
}
