package subscription

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var activatePaymentID string

var activateCmd = &cobra.Command{
	Use:   "activate [subscription-id]",
	Short: "Activate a subscription after payment",
	Long: `Record a confirmed payment on a pending subscription and make it the
lab's current subscription. The previous trial or plan is retired.

Examples:
  pathlab subscription activate 6f1c... --payment-id pay_29QQoUBi66xm2f`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}

		subscriptionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id: %w", err)
		}
		if activatePaymentID == "" {
			return errors.New("payment id is required")
		}

		active, err := app.Lifecycle.ActivateOnPaymentConfirmed(cmd.Context(), subscriptionID, activatePaymentID)
		if err != nil {
			return wrap("activate subscription", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Subscription activated: %s\n", active.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  ends: %s\n", active.EndDate.Local().Format(dateFormat))
		return nil
	},
}

func init() {
	activateCmd.Flags().StringVar(&activatePaymentID, "payment-id", "", "provider payment id")
}
