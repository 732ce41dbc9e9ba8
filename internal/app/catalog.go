package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

// DefaultCatalog is the plan catalog installed on an empty database.
func DefaultCatalog(trialPlanName, defaultPlanName string) []*domain.Plan {
	limit := func(n int) *int { return &n }
	return []*domain.Plan{
		{
			Name:         trialPlanName,
			Price:        decimal.Zero,
			Currency:     "INR",
			DurationDays: 14,
			Active:       true,
			Features: map[string]domain.FeatureValue{
				domain.FeatureReportTemplates: {Enabled: true},
				domain.FeaturePDFBranding:     {Enabled: true},
				domain.FeatureMaxPatients:     {Enabled: true, Limit: limit(100)},
				domain.FeatureMaxUsers:        {Enabled: true, Limit: limit(2)},
				domain.FeatureMaxReports:      {Enabled: true, Limit: limit(200)},
			},
		},
		{
			Name:         defaultPlanName,
			Price:        decimal.Zero,
			Currency:     "INR",
			DurationDays: 30,
			Active:       true,
			Features: map[string]domain.FeatureValue{
				domain.FeatureReportTemplates: {Enabled: true},
				domain.FeaturePDFBranding:     {Enabled: false},
				domain.FeatureMaxPatients:     {Enabled: true, Limit: limit(50)},
				domain.FeatureMaxUsers:        {Enabled: true, Limit: limit(1)},
				domain.FeatureMaxReports:      {Enabled: true, Limit: limit(100)},
			},
		},
		{
			Name:         "Premium",
			Price:        decimal.RequireFromString("4999.00"),
			Currency:     "INR",
			DurationDays: 30,
			Active:       true,
			Features: map[string]domain.FeatureValue{
				domain.FeatureReportTemplates: {Enabled: true},
				domain.FeaturePDFBranding:     {Enabled: true},
				domain.FeatureMaxPatients:     {Enabled: true},
				domain.FeatureMaxUsers:        {Enabled: true, Limit: limit(10)},
				domain.FeatureMaxReports:      {Enabled: true},
			},
		},
	}
}

// SeedCatalog installs the plans that are missing by name. Existing plans
// are left as the operator configured them.
func SeedCatalog(ctx context.Context, repo domain.PlanRepository, plans []*domain.Plan, logger *slog.Logger) (int, error) {
	seeded := 0
	for _, plan := range plans {
		existing, err := repo.FindByName(ctx, plan.Name)
		if err != nil {
			return seeded, fmt.Errorf("look up plan %q: %w", plan.Name, err)
		}
		if existing != nil {
			continue
		}
		if err := repo.Upsert(ctx, plan); err != nil {
			return seeded, fmt.Errorf("seed plan %q: %w", plan.Name, err)
		}
		seeded++
		logger.Info("seeded plan", "plan", plan.Name, "price", plan.Price.StringFixed(2), "duration_days", plan.DurationDays)
	}
	return seeded, nil
}
