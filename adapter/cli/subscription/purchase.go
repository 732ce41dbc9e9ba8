package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

var purchaseProvider string

var purchaseCmd = &cobra.Command{
	Use:   "purchase [plan]",
	Short: "Create a subscription awaiting payment",
	Long: `Create a pending subscription for a plan. The lab keeps its current
subscription until the payment is confirmed with "activate".

Examples:
  pathlab subscription purchase Premium
  pathlab subscription purchase Premium --provider stripe`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}

		provider, err := domain.ParsePaymentProvider(purchaseProvider)
		if err != nil {
			return err
		}
		plan, err := findPlan(cmd.Context(), app.Lifecycle, args[0])
		if err != nil {
			return err
		}

		pending, err := app.Lifecycle.CreatePendingSubscription(cmd.Context(), app.CurrentLabID, plan.ID, provider)
		if err != nil {
			return wrap("create subscription", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Pending subscription created: %s\n", pending.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  plan:     %s (%s %s)\n", plan.Name, plan.Price.StringFixed(2), plan.Currency)
		fmt.Fprintf(cmd.OutOrStdout(), "  provider: %s\n", pending.PaymentProvider)
		fmt.Fprintln(cmd.OutOrStdout(), "Confirm the payment with: pathlab subscription activate", pending.ID, "--payment-id <id>")
		return nil
	},
}

func init() {
	purchaseCmd.Flags().StringVarP(&purchaseProvider, "provider", "p", string(domain.ProviderRazorpay), "payment provider (razorpay, stripe, paypal)")
}
