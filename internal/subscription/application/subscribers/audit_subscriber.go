package subscribers

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/eventbus"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// AuditSubscriber writes one structured log record per lifecycle event.
// It is the consumer wired to the in-process bus in local mode.
type AuditSubscriber struct {
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewAuditSubscriber creates a new audit subscriber.
func NewAuditSubscriber(logger *slog.Logger, metrics observability.Metrics) *AuditSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &AuditSubscriber{
		logger:  logger.With("component", "audit"),
		metrics: metrics,
	}
}

// EventTypes returns the event types this subscriber handles.
func (s *AuditSubscriber) EventTypes() []string {
	return []string{
		domain.RoutingKeyTrialStarted,
		domain.RoutingKeyCreated,
		domain.RoutingKeyActivated,
		domain.RoutingKeyCancelled,
		domain.RoutingKeyExpired,
		domain.RoutingKeyDowngraded,
		domain.RoutingKeyLabDeactivated,
	}
}

// auditPayload is the union of the lifecycle event payloads.
type auditPayload struct {
	LabID                   uuid.UUID `json:"lab_id"`
	SubscriptionID          uuid.UUID `json:"subscription_id"`
	PlanID                  uuid.UUID `json:"plan_id"`
	Status                  string    `json:"status"`
	Reason                  string    `json:"reason"`
	ExpiredSubscriptionID   uuid.UUID `json:"expired_subscription_id"`
	DowngradeSubscriptionID uuid.UUID `json:"downgrade_subscription_id"`
}

// Handle processes an event. A payload that cannot be decoded is rejected so
// the outbox records the failure.
func (s *AuditSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var payload auditPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}

	attrs := []any{
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"occurred_at", event.OccurredAt,
		observability.LabIDKey, payload.LabID,
		observability.CorrelationIDKey, event.Metadata.CorrelationID,
	}
	switch event.RoutingKey {
	case domain.RoutingKeyDowngraded:
		attrs = append(attrs,
			"expired_subscription_id", payload.ExpiredSubscriptionID,
			"downgrade_subscription_id", payload.DowngradeSubscriptionID,
			"plan_id", payload.PlanID,
		)
	case domain.RoutingKeyLabDeactivated:
		attrs = append(attrs, "lab_status", payload.Status, "reason", payload.Reason)
	default:
		attrs = append(attrs,
			observability.SubscriptionIDKey, payload.SubscriptionID,
			"plan_id", payload.PlanID,
			"status", payload.Status,
		)
	}

	s.logger.InfoContext(ctx, "lifecycle event", attrs...)
	s.metrics.Counter(observability.MetricAuditEvents, 1, observability.T("routing_key", event.RoutingKey))
	return nil
}
