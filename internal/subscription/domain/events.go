package domain

import (
	"time"

	"github.com/google/uuid"
	sharedDomain "github.com/sohel7709/pathlab/internal/shared/domain"
)

const (
	SubscriptionAggregate = "Subscription"
	LabAggregate          = "Lab"
)

// Routing keys for lifecycle events.
const (
	RoutingKeyTrialStarted   = "subscription.trial_started"
	RoutingKeyCreated        = "subscription.pending_created"
	RoutingKeyActivated      = "subscription.activated"
	RoutingKeyCancelled      = "subscription.cancelled"
	RoutingKeyExpired        = "subscription.expired"
	RoutingKeyDowngraded     = "subscription.downgraded"
	RoutingKeyLabDeactivated = "lab.deactivated"
)

// SubscriptionEvent is emitted on every subscription status change.
type SubscriptionEvent struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	LabID          uuid.UUID `json:"lab_id"`
	PlanID         uuid.UUID `json:"plan_id"`
	Status         Status    `json:"status"`
	EndDate        time.Time `json:"end_date"`
}

// NewSubscriptionEvent creates an event describing sub's current state.
func NewSubscriptionEvent(routingKey string, sub *Subscription, at time.Time) *SubscriptionEvent {
	return &SubscriptionEvent{
		BaseEvent:      sharedDomain.NewBaseEvent(sub.ID, SubscriptionAggregate, routingKey, at),
		SubscriptionID: sub.ID,
		LabID:          sub.LabID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		EndDate:        sub.EndDate,
	}
}

// DowngradedEvent is emitted when an expired trial is replaced by the default plan.
type DowngradedEvent struct {
	sharedDomain.BaseEvent
	LabID                   uuid.UUID `json:"lab_id"`
	ExpiredSubscriptionID   uuid.UUID `json:"expired_subscription_id"`
	DowngradeSubscriptionID uuid.UUID `json:"downgrade_subscription_id"`
	PlanID                  uuid.UUID `json:"plan_id"`
}

// NewDowngradedEvent creates a downgrade event.
func NewDowngradedEvent(expired, replacement *Subscription, at time.Time) *DowngradedEvent {
	return &DowngradedEvent{
		BaseEvent:               sharedDomain.NewBaseEvent(replacement.ID, SubscriptionAggregate, RoutingKeyDowngraded, at),
		LabID:                   replacement.LabID,
		ExpiredSubscriptionID:   expired.ID,
		DowngradeSubscriptionID: replacement.ID,
		PlanID:                  replacement.PlanID,
	}
}

// LabDeactivatedEvent is emitted when a lab is left without a current subscription.
type LabDeactivatedEvent struct {
	sharedDomain.BaseEvent
	LabID  uuid.UUID `json:"lab_id"`
	Status LabStatus `json:"status"`
	Reason string    `json:"reason"`
}

// NewLabDeactivatedEvent creates a deactivation event.
func NewLabDeactivatedEvent(lab *Lab, reason string, at time.Time) *LabDeactivatedEvent {
	return &LabDeactivatedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(lab.ID, LabAggregate, RoutingKeyLabDeactivated, at),
		LabID:     lab.ID,
		Status:    lab.Status,
		Reason:    reason,
	}
}
