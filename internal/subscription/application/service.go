// Package application implements the subscription lifecycle use cases and
// the expiry sweep on top of the domain repositories.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	sharedApplication "github.com/sohel7709/pathlab/internal/shared/application"
	sharedDomain "github.com/sohel7709/pathlab/internal/shared/domain"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/lock"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/outbox"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// DefaultLabLockTTL bounds how long one lifecycle transition may hold a lab.
const DefaultLabLockTTL = 30 * time.Second

// Dependencies are the collaborators shared by LifecycleService and Sweeper.
type Dependencies struct {
	Plans         domain.PlanRepository
	Subscriptions domain.SubscriptionRepository
	Labs          domain.LabRepository
	// Outbox receives lifecycle events in the same unit of work as the
	// state change. Nil drops events.
	Outbox     outbox.Repository
	UnitOfWork sharedApplication.UnitOfWork
	// Locker serialises transitions per lab. Nil uses an in-process lock.
	Locker  lock.Locker
	Clock   domain.Clock
	Metrics observability.Metrics
	Logger  *slog.Logger
	LockTTL time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Locker == nil {
		d.Locker = lock.NewMemoryLock()
	}
	if d.Clock == nil {
		d.Clock = domain.SystemClock
	}
	if d.Metrics == nil {
		d.Metrics = observability.NoopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.LockTTL <= 0 {
		d.LockTTL = DefaultLabLockTTL
	}
	return d
}

// LabLockKey is the lock key every mutator of a lab's pointer holds.
func LabLockKey(labID uuid.UUID) string {
	return "lab:" + labID.String()
}

// inLabTransaction holds the lab lock and runs fn in a unit of work.
// Once the lock is held the caller can no longer cancel the sequence, so it
// either commits as a whole or rolls back.
func (d Dependencies) inLabTransaction(ctx context.Context, labID uuid.UUID, fn func(txCtx context.Context) error) error {
	return lock.WithLock(ctx, d.Locker, LabLockKey(labID), d.LockTTL, func(lockedCtx context.Context) error {
		return d.inTransaction(lockedCtx, fn)
	})
}

// inTransaction runs fn in a unit of work the caller can no longer cancel.
func (d Dependencies) inTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return sharedApplication.WithUnitOfWork(context.WithoutCancel(ctx), d.UnitOfWork, fn)
}

// lockLab reads the lab row for update inside the current transaction.
func (d Dependencies) lockLab(ctx context.Context, labID uuid.UUID) (*domain.Lab, error) {
	lab, err := d.Labs.FindByIDForUpdate(ctx, labID)
	if err != nil {
		return nil, fmt.Errorf("load lab %s: %w", labID, err)
	}
	if lab == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLabNotFound, labID)
	}
	return lab, nil
}

// activePlanByName returns ErrPlanNotFound for missing and inactive plans.
func (d Dependencies) activePlanByName(ctx context.Context, name string) (*domain.Plan, error) {
	plan, err := d.Plans.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load plan %q: %w", name, err)
	}
	if plan == nil || !plan.Active {
		return nil, fmt.Errorf("%w: %q", domain.ErrPlanNotFound, name)
	}
	return plan, nil
}

// saveEvents writes events to the outbox in ctx's unit of work.
func (d Dependencies) saveEvents(ctx context.Context, labID uuid.UUID, events ...sharedDomain.DomainEvent) error {
	if d.Outbox == nil || len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, labID))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("encode lifecycle events: %w", err)
	}
	return d.Outbox.SaveBatch(ctx, msgs)
}

// transition writes sub's new status only if the stored status is still
// from. errStale is returned when another writer got there first.
func (d Dependencies) transition(ctx context.Context, sub *domain.Subscription, from domain.Status, errStale error) error {
	ok, err := d.Subscriptions.UpdateStatus(ctx, sub, from)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: subscription %s is no longer %s", errStale, sub.ID, from)
	}
	return nil
}

// recordTransitions counts committed status changes.
func (d Dependencies) recordTransitions(statuses ...domain.Status) {
	for _, status := range statuses {
		d.Metrics.Counter(observability.MetricLifecycleTransitions, 1, observability.T("to", string(status)))
	}
}

// IsValidationError reports whether err is a caller error that retrying
// cannot fix.
func IsValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrAlreadySubscribed,
		domain.ErrPlanNotFound,
		domain.ErrNotPending,
		domain.ErrSubscriptionNotFound,
		domain.ErrNoActiveSubscription,
		domain.ErrLabNotFound,
		domain.ErrInvalidTransition,
		domain.ErrInvalidPlan,
		domain.ErrInvalidPaymentProvider,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
