package application

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

// EntitlementService answers feature checks from the lab's current
// subscription. A lab without one is entitled to nothing.
type EntitlementService struct {
	lifecycle *LifecycleService
}

// NewEntitlementService creates an EntitlementService.
func NewEntitlementService(lifecycle *LifecycleService) *EntitlementService {
	return &EntitlementService{lifecycle: lifecycle}
}

// HasFeature reports whether the lab's current plan enables feature.
func (s *EntitlementService) HasFeature(ctx context.Context, labID uuid.UUID, feature string) (bool, error) {
	current, err := s.current(ctx, labID)
	if err != nil || current == nil {
		return false, err
	}
	return current.Plan.HasFeature(feature), nil
}

// Limit returns the numeric limit for feature. ok is false when the lab is
// not entitled to it; limit < 0 means unlimited.
func (s *EntitlementService) Limit(ctx context.Context, labID uuid.UUID, feature string) (limit int, ok bool, err error) {
	current, err := s.current(ctx, labID)
	if err != nil || current == nil {
		return 0, false, err
	}
	limit, ok = current.Plan.Limit(feature)
	return limit, ok, nil
}

func (s *EntitlementService) current(ctx context.Context, labID uuid.UUID) (*CurrentSubscription, error) {
	current, err := s.lifecycle.GetCurrent(ctx, labID)
	if errors.Is(err, domain.ErrNoActiveSubscription) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !current.Subscription.Status.GrantsAccess() {
		return nil, nil
	}
	return current, nil
}
