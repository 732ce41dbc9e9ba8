package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/sohel7709/pathlab/internal/shared/domain"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// LifecycleConfig configures LifecycleService.
type LifecycleConfig struct {
	// TrialPlanName is the catalog plan StartTrial subscribes labs to.
	TrialPlanName string
}

// currentReadAttempts bounds how often GetCurrent follows a pointer that
// moved while it was reading.
const currentReadAttempts = 3

// CurrentSubscription is a lab's governing subscription and its plan.
type CurrentSubscription struct {
	Subscription *domain.Subscription
	Plan         *domain.Plan
}

// LifecycleService implements the synchronous lifecycle operations.
type LifecycleService struct {
	Dependencies
	trialPlanName string
}

// NewLifecycleService creates a LifecycleService.
func NewLifecycleService(deps Dependencies, cfg LifecycleConfig) *LifecycleService {
	if cfg.TrialPlanName == "" {
		cfg.TrialPlanName = domain.TrialPlanName
	}
	return &LifecycleService{
		Dependencies:  deps.withDefaults(),
		trialPlanName: cfg.TrialPlanName,
	}
}

// StartTrial subscribes a lab to the trial plan and makes it current.
// It fails with ErrAlreadySubscribed while the lab's current subscription is
// trial, active or pending payment.
func (s *LifecycleService) StartTrial(ctx context.Context, labID uuid.UUID) (*domain.Subscription, error) {
	ctx = observability.WithLabID(ctx, labID)
	return observability.TimeOperationResult(ctx, s.Logger, s.Metrics, "start_trial", func() (*domain.Subscription, error) {
		plan, err := s.activePlanByName(ctx, s.trialPlanName)
		if err != nil {
			return nil, err
		}

		var trial *domain.Subscription
		err = s.inLabTransaction(ctx, labID, func(txCtx context.Context) error {
			lab, err := s.lockLab(txCtx, labID)
			if err != nil {
				return err
			}
			if lab.CurrentSubscriptionID != nil {
				current, err := s.Subscriptions.FindByID(txCtx, *lab.CurrentSubscriptionID)
				if err != nil {
					return err
				}
				if current != nil && current.Status.BlocksNewTrial() {
					return fmt.Errorf("%w: subscription %s is %s", domain.ErrAlreadySubscribed, current.ID, current.Status)
				}
			}

			now := s.Clock.Now()
			trial, err = domain.NewSubscription(labID, plan, domain.StatusTrial, domain.ProviderNone, now)
			if err != nil {
				return err
			}
			if err := s.Subscriptions.Create(txCtx, trial); err != nil {
				return fmt.Errorf("create trial: %w", err)
			}
			lab.PointTo(trial.ID, now)
			if err := s.Labs.Update(txCtx, lab); err != nil {
				return fmt.Errorf("update lab: %w", err)
			}
			return s.saveEvents(txCtx, labID, domain.NewSubscriptionEvent(domain.RoutingKeyTrialStarted, trial, now))
		})
		if err != nil {
			return nil, err
		}

		s.recordTransitions(domain.StatusTrial)
		s.Logger.InfoContext(ctx, "trial started",
			observability.SubscriptionIDKey, trial.ID,
			"plan", plan.Name,
			"end_date", trial.EndDate,
		)
		return trial, nil
	})
}

// CreatePendingSubscription records a purchase awaiting payment. The lab's
// current subscription is untouched until the payment is confirmed.
func (s *LifecycleService) CreatePendingSubscription(ctx context.Context, labID, planID uuid.UUID, provider domain.PaymentProvider) (*domain.Subscription, error) {
	ctx = observability.WithLabID(ctx, labID)
	return observability.TimeOperationResult(ctx, s.Logger, s.Metrics, "create_pending_subscription", func() (*domain.Subscription, error) {
		plan, err := s.Plans.FindByID(ctx, planID)
		if err != nil {
			return nil, fmt.Errorf("load plan %s: %w", planID, err)
		}
		if plan == nil || !plan.Active {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, planID)
		}
		lab, err := s.Labs.FindByID(ctx, labID)
		if err != nil {
			return nil, fmt.Errorf("load lab %s: %w", labID, err)
		}
		if lab == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrLabNotFound, labID)
		}

		now := s.Clock.Now()
		pending, err := domain.NewSubscription(labID, plan, domain.StatusPendingPayment, provider, now)
		if err != nil {
			return nil, err
		}

		err = s.inTransaction(ctx, func(txCtx context.Context) error {
			if err := s.Subscriptions.Create(txCtx, pending); err != nil {
				return fmt.Errorf("create pending subscription: %w", err)
			}
			return s.saveEvents(txCtx, labID, domain.NewSubscriptionEvent(domain.RoutingKeyCreated, pending, now))
		})
		if err != nil {
			return nil, err
		}

		s.recordTransitions(domain.StatusPendingPayment)
		s.Logger.InfoContext(ctx, "pending subscription created",
			observability.SubscriptionIDKey, pending.ID,
			"plan", plan.Name,
			"provider", pending.PaymentProvider,
		)
		return pending, nil
	})
}

// ActivateOnPaymentConfirmed activates a pending subscription, cancels the
// lab's previous current subscription and points the lab at the new one, all
// in one transaction. A second confirmation fails with ErrNotPending.
func (s *LifecycleService) ActivateOnPaymentConfirmed(ctx context.Context, subscriptionID uuid.UUID, paymentID string) (*domain.Subscription, error) {
	return observability.TimeOperationResult(ctx, s.Logger, s.Metrics, "activate_on_payment_confirmed", func() (*domain.Subscription, error) {
		paymentID = strings.TrimSpace(paymentID)
		candidate, err := s.Subscriptions.FindByID(ctx, subscriptionID)
		if err != nil {
			return nil, fmt.Errorf("load subscription %s: %w", subscriptionID, err)
		}
		if candidate == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrSubscriptionNotFound, subscriptionID)
		}
		if candidate.Status != domain.StatusPendingPayment {
			return nil, fmt.Errorf("%w: subscription %s is %s", domain.ErrNotPending, subscriptionID, candidate.Status)
		}
		ctx = observability.WithLabID(ctx, candidate.LabID)

		var (
			activated *domain.Subscription
			retired   *domain.Subscription
		)
		err = s.inLabTransaction(ctx, candidate.LabID, func(txCtx context.Context) error {
			// Re-read under the lock: a concurrent confirmation may have won.
			sub, err := s.Subscriptions.FindByID(txCtx, subscriptionID)
			if err != nil {
				return err
			}
			if sub == nil {
				return fmt.Errorf("%w: %s", domain.ErrSubscriptionNotFound, subscriptionID)
			}
			lab, err := s.lockLab(txCtx, sub.LabID)
			if err != nil {
				return err
			}

			now := s.Clock.Now()
			if err := sub.Activate(paymentID, now); err != nil {
				return fmt.Errorf("%w: subscription %s is %s", err, sub.ID, sub.Status)
			}
			if err := s.transition(txCtx, sub, domain.StatusPendingPayment, domain.ErrNotPending); err != nil {
				return err
			}
			events := []sharedDomain.DomainEvent{domain.NewSubscriptionEvent(domain.RoutingKeyActivated, sub, now)}

			if lab.CurrentSubscriptionID != nil && *lab.CurrentSubscriptionID != sub.ID {
				previous, err := s.retire(txCtx, *lab.CurrentSubscriptionID, now)
				if err != nil {
					return err
				}
				if previous != nil {
					retired = previous
					events = append(events, domain.NewSubscriptionEvent(domain.RoutingKeyCancelled, previous, now))
				}
			}

			lab.PointTo(sub.ID, now)
			if err := s.Labs.Update(txCtx, lab); err != nil {
				return fmt.Errorf("update lab: %w", err)
			}
			activated = sub
			return s.saveEvents(txCtx, lab.ID, events...)
		})
		if err != nil {
			return nil, err
		}

		s.recordTransitions(domain.StatusActive)
		attrs := []any{observability.SubscriptionIDKey, activated.ID, "payment_id", activated.PaymentID}
		if retired != nil {
			s.recordTransitions(domain.StatusCancelled)
			attrs = append(attrs, "retired_subscription_id", retired.ID)
		}
		s.Logger.InfoContext(ctx, "subscription activated", attrs...)
		return activated, nil
	})
}

// retire cancels a superseded subscription. Subscriptions already in a
// terminal state are left alone and nil is returned.
func (s *LifecycleService) retire(ctx context.Context, subscriptionID uuid.UUID, now time.Time) (*domain.Subscription, error) {
	previous, err := s.Subscriptions.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load current subscription %s: %w", subscriptionID, err)
	}
	if previous == nil || previous.Status.IsTerminal() {
		return nil, nil
	}
	from := previous.Status
	if err := previous.Cancel(now); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, previous, from, domain.ErrInvalidTransition); err != nil {
		return nil, err
	}
	return previous, nil
}

// Cancel cancels the lab's current subscription and clears the pointer.
// A lab with nothing to cancel is left unchanged and nil is returned.
func (s *LifecycleService) Cancel(ctx context.Context, labID uuid.UUID) error {
	return s.cancel(ctx, labID, false)
}

// CancelStrict is Cancel but returns ErrNoActiveSubscription when there is
// nothing to cancel.
func (s *LifecycleService) CancelStrict(ctx context.Context, labID uuid.UUID) error {
	return s.cancel(ctx, labID, true)
}

func (s *LifecycleService) cancel(ctx context.Context, labID uuid.UUID, strict bool) error {
	ctx = observability.WithLabID(ctx, labID)
	return observability.TimeOperation(ctx, s.Logger, s.Metrics, "cancel", func() error {
		var cancelled *domain.Subscription
		err := s.inLabTransaction(ctx, labID, func(txCtx context.Context) error {
			lab, err := s.lockLab(txCtx, labID)
			if err != nil {
				return err
			}
			if lab.CurrentSubscriptionID == nil {
				if strict {
					return fmt.Errorf("%w: lab %s", domain.ErrNoActiveSubscription, labID)
				}
				return nil
			}

			now := s.Clock.Now()
			cancelled, err = s.retire(txCtx, *lab.CurrentSubscriptionID, now)
			if err != nil {
				return err
			}
			if cancelled == nil {
				if strict {
					return fmt.Errorf("%w: subscription %s already ended", domain.ErrNoActiveSubscription, *lab.CurrentSubscriptionID)
				}
				return nil
			}

			lab.Detach(domain.LabInactive, now)
			if err := s.Labs.Update(txCtx, lab); err != nil {
				return fmt.Errorf("update lab: %w", err)
			}
			return s.saveEvents(txCtx, labID,
				domain.NewSubscriptionEvent(domain.RoutingKeyCancelled, cancelled, now),
				domain.NewLabDeactivatedEvent(lab, "cancelled", now),
			)
		})
		if err != nil {
			return err
		}

		if cancelled == nil {
			s.Logger.DebugContext(ctx, "nothing to cancel")
			return nil
		}
		s.recordTransitions(domain.StatusCancelled)
		s.Logger.InfoContext(ctx, "subscription cancelled", observability.SubscriptionIDKey, cancelled.ID)
		return nil
	})
}

// GetCurrent returns the lab's current subscription and its plan, or
// ErrNoActiveSubscription when the lab has none. The lab and the
// subscription are read separately; when a transition commits between the
// two reads the subscription no longer grants access, and the lab is read
// again to follow the new pointer.
func (s *LifecycleService) GetCurrent(ctx context.Context, labID uuid.UUID) (*CurrentSubscription, error) {
	var stale uuid.UUID
	for range currentReadAttempts {
		lab, err := s.Labs.FindByID(ctx, labID)
		if err != nil {
			return nil, fmt.Errorf("load lab %s: %w", labID, err)
		}
		if lab == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrLabNotFound, labID)
		}
		if lab.CurrentSubscriptionID == nil {
			return nil, fmt.Errorf("%w: lab %s is %s", domain.ErrNoActiveSubscription, labID, lab.Status)
		}
		subID := *lab.CurrentSubscriptionID
		if subID == stale {
			// Pointer unchanged since the last read: the lab really points
			// at a record that cannot govern entitlements.
			s.Logger.ErrorContext(ctx, "lab points at a subscription without access",
				observability.LabIDKey, labID,
				observability.SubscriptionIDKey, subID,
			)
			return nil, fmt.Errorf("%w: lab %s", domain.ErrNoActiveSubscription, labID)
		}

		sub, err := s.Subscriptions.FindByID(ctx, subID)
		if err != nil {
			return nil, fmt.Errorf("load subscription %s: %w", subID, err)
		}
		if sub == nil || !sub.Status.GrantsAccess() {
			stale = subID
			continue
		}

		plan, err := s.Plans.FindByID(ctx, sub.PlanID)
		if err != nil {
			return nil, fmt.Errorf("load plan %s: %w", sub.PlanID, err)
		}
		if plan == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, sub.PlanID)
		}
		return &CurrentSubscription{Subscription: sub, Plan: plan}, nil
	}
	return nil, fmt.Errorf("%w: lab %s changed during read", domain.ErrNoActiveSubscription, labID)
}

// History returns every subscription of the lab, newest first.
func (s *LifecycleService) History(ctx context.Context, labID uuid.UUID) ([]*domain.Subscription, error) {
	return s.Subscriptions.ListByLab(ctx, labID)
}

// ListPlans returns the plan catalog.
func (s *LifecycleService) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	return s.Plans.List(ctx)
}

// EnsureLab returns the lab with labID, creating an inactive one named name
// when it does not exist yet.
func (s *LifecycleService) EnsureLab(ctx context.Context, labID uuid.UUID, name string) (*domain.Lab, error) {
	lab, err := s.Labs.FindByID(ctx, labID)
	if err != nil {
		return nil, fmt.Errorf("load lab %s: %w", labID, err)
	}
	if lab != nil {
		return lab, nil
	}

	now := s.Clock.Now()
	lab = &domain.Lab{
		ID:        labID,
		Name:      name,
		Status:    domain.LabInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Labs.Create(ctx, lab); err != nil {
		return nil, fmt.Errorf("create lab: %w", err)
	}
	s.Logger.InfoContext(ctx, "lab registered", observability.LabIDKey, labID, "name", name)
	return lab, nil
}
