package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sohel7709/pathlab/internal/shared/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventMetadata(t *testing.T) {
	t.Run("uses correlation ID from context", func(t *testing.T) {
		tenantID := uuid.New()
		correlationID := uuid.New()
		ctx := observability.WithCorrelationID(context.Background(), correlationID.String())

		metadata := NewEventMetadata(ctx, tenantID)

		assert.Equal(t, tenantID, metadata.TenantID)
		assert.Equal(t, correlationID, metadata.CorrelationID)
		assert.NotEqual(t, uuid.Nil, metadata.CausationID)
	})

	t.Run("generates correlation ID when context has none", func(t *testing.T) {
		tenantID := uuid.New()

		metadata1 := NewEventMetadata(context.Background(), tenantID)
		metadata2 := NewEventMetadata(context.Background(), tenantID)

		assert.NotEqual(t, uuid.Nil, metadata1.CorrelationID)
		assert.NotEqual(t, metadata1.CorrelationID, metadata2.CorrelationID)
	})

	t.Run("ignores non-UUID correlation IDs", func(t *testing.T) {
		ctx := observability.WithCorrelationID(context.Background(), "req-42")

		metadata := NewEventMetadata(ctx, uuid.New())

		assert.NotEqual(t, uuid.Nil, metadata.CorrelationID)
	})
}

type testEvent struct {
	domain.BaseEvent
}

type nonSetterEvent struct {
	domain.DomainEvent
}

func TestApplyEventMetadata(t *testing.T) {
	metadata := NewEventMetadata(context.Background(), uuid.New())

	event := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Subscription", "subscription.cancelled", time.Now())}
	plain := nonSetterEvent{DomainEvent: domain.NewBaseEvent(uuid.New(), "Lab", "lab.deactivated", time.Now())}

	require.NotPanics(t, func() {
		ApplyEventMetadata([]domain.DomainEvent{event, plain}, metadata)
	})
	assert.Equal(t, metadata, event.Metadata())
	assert.Equal(t, domain.EventMetadata{}, plain.Metadata())
}

func TestApplyEventMetadata_KeepsExisting(t *testing.T) {
	original := domain.EventMetadata{CorrelationID: uuid.New(), CausationID: uuid.New(), TenantID: uuid.New()}
	event := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Subscription", "subscription.expired", time.Now())}
	event.SetMetadata(original)

	ApplyEventMetadata([]domain.DomainEvent{event}, NewEventMetadata(context.Background(), uuid.New()))

	assert.Equal(t, original, event.Metadata())
}
