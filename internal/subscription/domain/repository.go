package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Finder methods return (nil, nil) when no record matches.

// PlanRepository reads the plan catalog.
type PlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	FindByName(ctx context.Context, name string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
	// Upsert is used by catalog seeding only; lifecycle code never writes plans.
	Upsert(ctx context.Context, plan *Plan) error
}

// SubscriptionRepository persists subscription records.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// FindExpired returns trial and active subscriptions whose end date is before now.
	FindExpired(ctx context.Context, now time.Time) ([]*Subscription, error)
	// ListByLab returns every subscription of a lab, newest first.
	ListByLab(ctx context.Context, labID uuid.UUID) ([]*Subscription, error)
	// UpdateStatus writes sub's status, payment id and updated time only if the
	// stored status still equals from. It reports whether a row was changed.
	UpdateStatus(ctx context.Context, sub *Subscription, from Status) (bool, error)
}

// LabRepository persists the tenant records that point at current subscriptions.
type LabRepository interface {
	Create(ctx context.Context, lab *Lab) error
	FindByID(ctx context.Context, id uuid.UUID) (*Lab, error)
	// FindByIDForUpdate reads the lab and locks its row for the enclosing transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Lab, error)
	Update(ctx context.Context, lab *Lab) error
}
