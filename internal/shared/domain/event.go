package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about an aggregate. Events are written to the
// outbox with the state change that raised them and published afterwards.
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	// RoutingKey names the event on the broker, e.g. "subscription.expired".
	RoutingKey() string
	OccurredAt() time.Time
	Metadata() EventMetadata
}

// EventMetadata traces an event back to the operation that raised it.
// TenantID is the lab.
type EventMetadata struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	CausationID   uuid.UUID `json:"causation_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
}

// IsZero reports whether no metadata has been attached.
func (m EventMetadata) IsZero() bool {
	return m == EventMetadata{}
}

// BaseEvent implements DomainEvent. Concrete events embed it and add their
// payload as exported fields; BaseEvent itself contributes nothing to the
// JSON encoding.
type BaseEvent struct {
	id         uuid.UUID
	aggregate  aggregateRef
	routingKey string
	occurredAt time.Time
	metadata   EventMetadata
}

type aggregateRef struct {
	kind string
	id   uuid.UUID
}

// NewBaseEvent creates a BaseEvent with a fresh event ID. occurredAt should
// come from the caller's clock; it is stored in UTC.
func NewBaseEvent(aggregateID uuid.UUID, aggregateType, routingKey string, occurredAt time.Time) BaseEvent {
	return BaseEvent{
		id:         uuid.New(),
		aggregate:  aggregateRef{kind: aggregateType, id: aggregateID},
		routingKey: routingKey,
		occurredAt: occurredAt.UTC(),
	}
}

func (e BaseEvent) EventID() uuid.UUID      { return e.id }
func (e BaseEvent) AggregateID() uuid.UUID  { return e.aggregate.id }
func (e BaseEvent) AggregateType() string   { return e.aggregate.kind }
func (e BaseEvent) RoutingKey() string      { return e.routingKey }
func (e BaseEvent) OccurredAt() time.Time   { return e.occurredAt }
func (e BaseEvent) Metadata() EventMetadata { return e.metadata }

// SetMetadata attaches metadata, replacing any already set.
func (e *BaseEvent) SetMetadata(metadata EventMetadata) {
	e.metadata = metadata
}
