package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sohel7709/pathlab/adapter/cli"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

var requireFeature string

// knownFeatures is the display order of entitlement checks.
var knownFeatures = []string{
	domain.FeatureReportTemplates,
	domain.FeaturePDFBranding,
	domain.FeatureMaxPatients,
	domain.FeatureMaxUsers,
	domain.FeatureMaxReports,
}

var entitlementsCmd = &cobra.Command{
	Use:   "entitlements",
	Short: "List the features the lab is entitled to",
	Long: `List the features of the lab's current plan. With --require the
command fails unless the named feature is enabled.

Examples:
  pathlab subscription entitlements
  pathlab subscription entitlements --require pdf_branding`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp()
		if err != nil {
			return err
		}
		if app.Entitlements == nil {
			return errNotInitialized
		}
		ctx := cmd.Context()

		if requireFeature != "" {
			if err := cli.RequireFeature(ctx, app, requireFeature); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: enabled\n", requireFeature)
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Entitlements:")
		for _, feature := range knownFeatures {
			limit, ok, err := app.Entitlements.Limit(ctx, app.CurrentLabID, feature)
			if err != nil {
				return wrap("check entitlements", err)
			}
			switch {
			case !ok:
				fmt.Fprintf(cmd.OutOrStdout(), "  %-22s disabled\n", feature)
			case limit < 0:
				fmt.Fprintf(cmd.OutOrStdout(), "  %-22s enabled\n", feature)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "  %-22s limit %d\n", feature, limit)
			}
		}
		return nil
	},
}

func init() {
	entitlementsCmd.Flags().StringVar(&requireFeature, "require", "", "fail unless this feature is enabled")
}
