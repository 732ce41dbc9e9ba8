package subscription

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sohel7709/pathlab/adapter/cli"
	"github.com/sohel7709/pathlab/internal/subscription/application"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

// Cmd is the subscription command group.
var Cmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"sub"},
	Short:   "Manage the lab subscription",
	Long:    `Start trials, purchase and activate plans, cancel, and inspect the lab's subscription.`,
}

func init() {
	Cmd.AddCommand(plansCmd)
	Cmd.AddCommand(trialCmd)
	Cmd.AddCommand(purchaseCmd)
	Cmd.AddCommand(activateCmd)
	Cmd.AddCommand(webhookCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(historyCmd)
	Cmd.AddCommand(entitlementsCmd)
	Cmd.AddCommand(sweepCmd)
}

var errNotInitialized = errors.New("application not initialized - database connection required")

func requireApp() (*cli.App, error) {
	app := cli.GetApp()
	if app == nil || app.Lifecycle == nil {
		return nil, errNotInitialized
	}
	return app, nil
}

// wrap keeps caller mistakes readable and prefixes everything else with
// the failed action.
func wrap(action string, err error) error {
	if application.IsValidationError(err) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

const dateFormat = "2006-01-02"

func printSubscription(w io.Writer, sub *domain.Subscription, plan *domain.Plan) {
	planName := sub.PlanID.String()
	if plan != nil {
		planName = plan.Name
	}
	fmt.Fprintf(w, "Subscription: %s\n", sub.ID)
	fmt.Fprintf(w, "  plan:     %s\n", planName)
	fmt.Fprintf(w, "  status:   %s\n", sub.Status)
	fmt.Fprintf(w, "  period:   %s to %s\n", sub.StartDate.Local().Format(dateFormat), sub.EndDate.Local().Format(dateFormat))
	if sub.PaymentProvider != domain.ProviderNone {
		fmt.Fprintf(w, "  provider: %s\n", sub.PaymentProvider)
	}
	if sub.PaymentID != "" {
		fmt.Fprintf(w, "  payment:  %s\n", sub.PaymentID)
	}
}

func daysLeft(sub *domain.Subscription, now time.Time) int {
	remaining := sub.EndDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}
