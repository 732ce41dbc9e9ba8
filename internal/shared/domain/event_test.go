package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sohel7709/pathlab/internal/shared/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	at := time.Date(2025, 1, 10, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))

	event := domain.NewBaseEvent(aggregateID, "Subscription", "subscription.expired", at)

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "Subscription", event.AggregateType())
	assert.Equal(t, "subscription.expired", event.RoutingKey())
	assert.True(t, event.OccurredAt().Equal(at))
	assert.Equal(t, time.UTC, event.OccurredAt().Location())
}

func TestBaseEvent_WithMetadata(t *testing.T) {
	correlationID := uuid.New()
	causationID := uuid.New()
	tenantID := uuid.New()

	event := domain.NewBaseEvent(uuid.New(), "Lab", "lab.deactivated", time.Now())
	event.SetMetadata(domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   causationID,
		TenantID:      tenantID,
	})

	metadata := event.Metadata()
	assert.Equal(t, correlationID, metadata.CorrelationID)
	assert.Equal(t, causationID, metadata.CausationID)
	assert.Equal(t, tenantID, metadata.TenantID)
}

func TestEventMetadata_IsZero(t *testing.T) {
	assert.True(t, domain.EventMetadata{}.IsZero())
	assert.False(t, domain.EventMetadata{TenantID: uuid.New()}.IsZero())
}
