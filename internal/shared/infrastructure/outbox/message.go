package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/domain"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/eventbus"
)

// State is where a message is in its delivery.
type State string

const (
	StatePending   State = "pending"
	StateRetrying  State = "retrying"
	StatePublished State = "published"
	StateDead      State = "dead"
)

// Message is a lifecycle event written in the same transaction as the
// state change that raised it. Payload is the event encoded as JSON.
type Message struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	RoutingKey    string
	Payload       json.RawMessage
	Metadata      json.RawMessage
	CreatedAt     time.Time

	// Delivery bookkeeping, owned by the Processor.
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage encodes event for the outbox.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.RoutingKey(), err)
	}
	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, fmt.Errorf("encode %s metadata: %w", event.RoutingKey(), err)
	}
	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewMessages encodes events in order. Nothing is returned if any fails.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, len(events))
	for i, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// State derives the delivery state from the bookkeeping fields.
func (m *Message) State() State {
	switch {
	case m.DeadLetteredAt != nil:
		return StateDead
	case m.PublishedAt != nil:
		return StatePublished
	case m.RetryCount > 0:
		return StateRetrying
	default:
		return StatePending
	}
}

// IsPublished reports whether the broker has accepted the message.
func (m *Message) IsPublished() bool {
	return m.State() == StatePublished
}

// Due reports whether the message should be attempted at now.
func (m *Message) Due(now time.Time) bool {
	switch m.State() {
	case StatePublished, StateDead:
		return false
	}
	return m.NextRetryAt == nil || !m.NextRetryAt.After(now)
}

// EventMetadata decodes the stored metadata. Missing or malformed metadata
// yields the zero value.
func (m *Message) EventMetadata() domain.EventMetadata {
	var metadata domain.EventMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	return metadata
}

// Envelope encodes the message as the eventbus.ConsumedEvent consumers
// receive.
func (m *Message) Envelope() ([]byte, error) {
	return json.Marshal(eventbus.ConsumedEvent{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
		Metadata:      m.EventMetadata(),
	})
}
