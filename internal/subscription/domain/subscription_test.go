package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func premiumPlan() *domain.Plan {
	return &domain.Plan{
		ID:           uuid.New(),
		Name:         "Premium",
		Price:        decimal.RequireFromString("4999.00"),
		Currency:     "INR",
		DurationDays: 30,
		Active:       true,
	}
}

func TestNewSubscription(t *testing.T) {
	labID := uuid.New()
	plan := premiumPlan()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	sub, err := domain.NewSubscription(labID, plan, domain.StatusPendingPayment, domain.ProviderRazorpay, start)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, sub.ID)
	assert.Equal(t, labID, sub.LabID)
	assert.Equal(t, plan.ID, sub.PlanID)
	assert.Equal(t, domain.StatusPendingPayment, sub.Status)
	assert.Equal(t, domain.ProviderRazorpay, sub.PaymentProvider)
	assert.Equal(t, start, sub.StartDate)
	assert.Equal(t, time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC), sub.EndDate)
	assert.True(t, sub.EndDate.After(sub.StartDate))
	assert.False(t, sub.AutoRenew)
	assert.Empty(t, sub.PaymentID)
}

func TestNewSubscription_DefaultsProvider(t *testing.T) {
	sub, err := domain.NewSubscription(uuid.New(), premiumPlan(), domain.StatusTrial, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderNone, sub.PaymentProvider)
}

func TestNewSubscription_Rejects(t *testing.T) {
	start := time.Now()
	badPlan := premiumPlan()
	badPlan.DurationDays = 0

	tests := []struct {
		name     string
		labID    uuid.UUID
		plan     *domain.Plan
		status   domain.Status
		provider domain.PaymentProvider
		err      error
	}{
		{"missing lab", uuid.Nil, premiumPlan(), domain.StatusTrial, domain.ProviderNone, domain.ErrLabNotFound},
		{"missing plan", uuid.New(), nil, domain.StatusTrial, domain.ProviderNone, domain.ErrPlanNotFound},
		{"invalid plan", uuid.New(), badPlan, domain.StatusTrial, domain.ProviderNone, domain.ErrInvalidPlan},
		{"terminal status", uuid.New(), premiumPlan(), domain.StatusExpired, domain.ProviderNone, domain.ErrInvalidTransition},
		{"unknown provider", uuid.New(), premiumPlan(), domain.StatusActive, "bitcoin", domain.ErrInvalidPaymentProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewSubscription(tt.labID, tt.plan, tt.status, tt.provider, start)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSubscription_Activate(t *testing.T) {
	sub, err := domain.NewSubscription(uuid.New(), premiumPlan(), domain.StatusPendingPayment, domain.ProviderStripe, time.Now())
	require.NoError(t, err)
	endDate := sub.EndDate

	at := sub.StartDate.Add(time.Minute)
	require.NoError(t, sub.Activate("pay_123", at))
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, "pay_123", sub.PaymentID)
	assert.Equal(t, at, sub.UpdatedAt)
	assert.Equal(t, endDate, sub.EndDate, "activation must not recompute the period")

	err = sub.Activate("pay_456", at)
	assert.ErrorIs(t, err, domain.ErrNotPending)
	assert.Equal(t, "pay_123", sub.PaymentID)
}

func TestSubscription_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []domain.Status{domain.StatusExpired, domain.StatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			sub := &domain.Subscription{Status: terminal}
			assert.ErrorIs(t, sub.Expire(time.Now()), domain.ErrInvalidTransition)
			assert.ErrorIs(t, sub.Cancel(time.Now()), domain.ErrInvalidTransition)
			assert.ErrorIs(t, sub.Activate("p", time.Now()), domain.ErrNotPending)
			assert.Equal(t, terminal, sub.Status)
		})
	}
}

func TestSubscription_Expire(t *testing.T) {
	trial := &domain.Subscription{Status: domain.StatusTrial}
	require.NoError(t, trial.Expire(time.Now()))
	assert.Equal(t, domain.StatusExpired, trial.Status)

	pending := &domain.Subscription{Status: domain.StatusPendingPayment}
	assert.ErrorIs(t, pending.Expire(time.Now()), domain.ErrInvalidTransition)
}

func TestSubscription_IsExpiredAt(t *testing.T) {
	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	sub := &domain.Subscription{EndDate: end}

	assert.False(t, sub.IsExpiredAt(end))
	assert.True(t, sub.IsExpiredAt(end.Add(time.Second)))
	assert.False(t, sub.IsExpiredAt(end.Add(-time.Second)))
}

func TestCanTransition(t *testing.T) {
	all := []domain.Status{
		domain.StatusTrial, domain.StatusActive, domain.StatusExpired,
		domain.StatusCancelled, domain.StatusPendingPayment,
	}
	allowed := map[[2]domain.Status]bool{
		{domain.StatusPendingPayment, domain.StatusActive}:    true,
		{domain.StatusPendingPayment, domain.StatusCancelled}: true,
		{domain.StatusTrial, domain.StatusExpired}:            true,
		{domain.StatusTrial, domain.StatusCancelled}:          true,
		{domain.StatusActive, domain.StatusExpired}:           true,
		{domain.StatusActive, domain.StatusCancelled}:         true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]domain.Status{from, to}], domain.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, domain.StatusExpired.IsTerminal())
	assert.True(t, domain.StatusCancelled.IsTerminal())
	assert.False(t, domain.StatusTrial.IsTerminal())

	assert.True(t, domain.StatusTrial.GrantsAccess())
	assert.True(t, domain.StatusActive.GrantsAccess())
	assert.False(t, domain.StatusPendingPayment.GrantsAccess())

	assert.True(t, domain.StatusPendingPayment.BlocksNewTrial())
	assert.False(t, domain.StatusExpired.BlocksNewTrial())

	assert.False(t, domain.Status("paused").IsValid())
}
