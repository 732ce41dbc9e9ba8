package domain

import (
	"time"

	"github.com/google/uuid"
)

// LabStatus is the tenant-level status derived from subscription state.
type LabStatus string

const (
	LabActive   LabStatus = "active"
	LabInactive LabStatus = "inactive"
	// LabDowngradeFailed is an inactive lab whose expired trial could not be
	// moved onto the default plan.
	LabDowngradeFailed LabStatus = "downgrade_failed"
)

// Lab is the tenant record. CurrentSubscriptionID is a back-reference kept
// consistent by the lifecycle service and the expiry sweep.
type Lab struct {
	ID                    uuid.UUID
	Name                  string
	CurrentSubscriptionID *uuid.UUID
	Status                LabStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsActive reports whether the lab has a usable subscription.
func (l *Lab) IsActive() bool {
	return l != nil && l.Status == LabActive
}

// IsCurrent reports whether subscriptionID is the lab's current subscription.
func (l *Lab) IsCurrent(subscriptionID uuid.UUID) bool {
	return l != nil && l.CurrentSubscriptionID != nil && *l.CurrentSubscriptionID == subscriptionID
}

// PointTo makes subscriptionID the current subscription and activates the lab.
func (l *Lab) PointTo(subscriptionID uuid.UUID, at time.Time) {
	id := subscriptionID
	l.CurrentSubscriptionID = &id
	l.Status = LabActive
	l.UpdatedAt = at
}

// Detach clears the current subscription and records why the lab is inactive.
func (l *Lab) Detach(status LabStatus, at time.Time) {
	l.CurrentSubscriptionID = nil
	l.Status = status
	l.UpdatedAt = at
}
