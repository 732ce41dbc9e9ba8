package subscription

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/security"
)

var webhookEventPath string

// paymentConfirmation is the provider-neutral payload the payment
// integration hands over once a charge succeeds.
type paymentConfirmation struct {
	Type           string `json:"type"`
	SubscriptionID string `json:"subscription_id"`
	PaymentID      string `json:"payment_id"`
}

const paymentCapturedEvent = "payment.captured"

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Apply a payment confirmation payload",
	Long: `Activate the subscription named in a payment confirmation file.
Events other than payment.captured are acknowledged and ignored.

Examples:
  pathlab subscription webhook --event ./payment.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if webhookEventPath == "" {
			return errors.New("event path is required")
		}

		payload, err := security.SafeReadFile(webhookEventPath)
		if err != nil {
			return err
		}

		var event paymentConfirmation
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("invalid webhook payload: %w", err)
		}
		if event.Type != paymentCapturedEvent {
			eventType := event.Type
			if eventType == "" {
				eventType = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignored webhook event: %s\n", eventType)
			return nil
		}

		subscriptionID, err := uuid.Parse(event.SubscriptionID)
		if err != nil {
			return fmt.Errorf("invalid subscription id in payload: %w", err)
		}
		if event.PaymentID == "" {
			return errors.New("payment id missing from payload")
		}

		app, err := requireApp()
		if err != nil {
			return err
		}
		active, err := app.Lifecycle.ActivateOnPaymentConfirmed(cmd.Context(), subscriptionID, event.PaymentID)
		if err != nil {
			return wrap("activate subscription", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Subscription activated: %s\n", active.ID)
		return nil
	},
}

func init() {
	webhookCmd.Flags().StringVar(&webhookEventPath, "event", "", "path to payment event JSON")
}
