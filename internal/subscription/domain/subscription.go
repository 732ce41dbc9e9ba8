package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Subscription is one billing period of a lab on a plan.
// Records are never deleted; superseded ones end in a terminal status.
type Subscription struct {
	ID              uuid.UUID
	LabID           uuid.UUID
	PlanID          uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
	Status          Status
	PaymentProvider PaymentProvider
	PaymentID       string
	AutoRenew       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSubscription builds a subscription for plan starting at start.
// EndDate is derived once here and never recomputed.
func NewSubscription(labID uuid.UUID, plan *Plan, status Status, provider PaymentProvider, start time.Time) (*Subscription, error) {
	if labID == uuid.Nil {
		return nil, fmt.Errorf("%w: lab id is required", ErrLabNotFound)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	switch status {
	case StatusTrial, StatusActive, StatusPendingPayment:
	default:
		return nil, fmt.Errorf("%w: cannot create a subscription as %s", ErrInvalidTransition, status)
	}
	if provider == "" {
		provider = ProviderNone
	}
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentProvider, provider)
	}

	return &Subscription{
		ID:              uuid.New(),
		LabID:           labID,
		PlanID:          plan.ID,
		StartDate:       start,
		EndDate:         EndDate(start, plan.DurationDays),
		Status:          status,
		PaymentProvider: provider,
		CreatedAt:       start,
		UpdatedAt:       start,
	}, nil
}

// IsExpiredAt reports whether the period ended strictly before now.
func (s *Subscription) IsExpiredAt(now time.Time) bool {
	return s.EndDate.Before(now)
}

// Activate records a confirmed payment on a pending subscription.
func (s *Subscription) Activate(paymentID string, at time.Time) error {
	if s.Status != StatusPendingPayment {
		return ErrNotPending
	}
	s.Status = StatusActive
	s.PaymentID = paymentID
	s.UpdatedAt = at
	return nil
}

// Expire moves a trial or active subscription to expired.
func (s *Subscription) Expire(at time.Time) error {
	return s.transition(StatusExpired, at)
}

// Cancel moves a non-terminal subscription to cancelled.
func (s *Subscription) Cancel(at time.Time) error {
	return s.transition(StatusCancelled, at)
}

func (s *Subscription) transition(to Status, at time.Time) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = at
	return nil
}
