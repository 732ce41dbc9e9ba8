package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Well-known plan names.
const (
	DefaultPlanName = "Basic"
	TrialPlanName   = "Trial"
)

// Feature names carried in plan feature flags.
const (
	FeatureReportTemplates = "report_templates"
	FeaturePDFBranding     = "pdf_branding"
	FeatureMaxPatients     = "max_patients"
	FeatureMaxUsers        = "max_users"
	FeatureMaxReports      = "max_reports_per_month"
)

// FeatureValue is either an on/off capability or a numeric limit.
// A nil Limit means unlimited when Enabled is true.
type FeatureValue struct {
	Enabled bool `json:"enabled"`
	Limit   *int `json:"limit,omitempty"`
}

// Plan is a catalog entry. The lifecycle core only reads plans.
type Plan struct {
	ID           uuid.UUID
	Name         string
	Price        decimal.Decimal
	Currency     string
	DurationDays int
	Features     map[string]FeatureValue
	Active       bool
}

// Validate checks catalog invariants.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidPlan)
	}
	if p.DurationDays <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d days", ErrInvalidPlan, p.DurationDays)
	}
	return nil
}

// IsFree reports whether the plan costs nothing.
func (p *Plan) IsFree() bool {
	return p.Price.IsZero()
}

// HasFeature reports whether the plan enables the named capability.
func (p *Plan) HasFeature(name string) bool {
	if p == nil {
		return false
	}
	f, ok := p.Features[name]
	return ok && f.Enabled
}

// Limit returns the numeric limit for a feature.
// ok is false when the feature is disabled or absent; limit < 0 means unlimited.
func (p *Plan) Limit(name string) (limit int, ok bool) {
	if !p.HasFeature(name) {
		return 0, false
	}
	f := p.Features[name]
	if f.Limit == nil {
		return -1, true
	}
	return *f.Limit, true
}
