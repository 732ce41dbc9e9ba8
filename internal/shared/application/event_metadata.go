package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// NewEventMetadata builds the metadata shared by the events of one
// operation on tenantID. The correlation ID comes from ctx when it holds a
// UUID, so every event of a CLI command or worker run traces back to it.
// The causation ID is fresh and identifies the operation itself.
func NewEventMetadata(ctx context.Context, tenantID uuid.UUID) domain.EventMetadata {
	correlationID, err := uuid.Parse(observability.CorrelationIDFromContext(ctx))
	if err != nil {
		correlationID = uuid.New()
	}
	return domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   uuid.New(),
		TenantID:      tenantID,
	}
}

// ApplyEventMetadata stamps metadata on events that accept it and carry
// none yet.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		stampable, ok := event.(interface {
			SetMetadata(domain.EventMetadata)
		})
		if !ok || !event.Metadata().IsZero() {
			continue
		}
		stampable.SetMetadata(metadata)
	}
}
