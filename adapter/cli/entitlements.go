package cli

import (
	"context"
	"fmt"
)

// RequireFeature ensures the current lab's plan enables feature.
func RequireFeature(ctx context.Context, app *App, feature string) error {
	if app == nil || app.Entitlements == nil {
		return nil
	}
	allowed, err := app.Entitlements.HasFeature(ctx, app.CurrentLabID, feature)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("feature not included in plan: %s", feature)
	}
	return nil
}
