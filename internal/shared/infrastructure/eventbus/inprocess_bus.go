package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// InProcessEventBus delivers outbox messages straight to registered
// consumers. It stands in for RabbitMQ when no broker is configured.
type InProcessEventBus struct {
	*ConsumerRegistry

	// deliver serialises dispatch so consumers see events in outbox order.
	deliver sync.Mutex
	logger  *slog.Logger
}

// NewInProcessEventBus creates an InProcessEventBus with no consumers.
func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{
		ConsumerRegistry: NewConsumerRegistry(logger),
		logger:           logger,
	}
}

// RegisterConsumer binds consumer to the patterns it declares.
func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.Register(consumer)
}

// Publish decodes the envelope and dispatches it. A consumer error is
// returned so the outbox keeps the message for a retry.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	var event ConsumedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode event %s: %w", routingKey, err)
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}

	b.deliver.Lock()
	defer b.deliver.Unlock()
	if err := b.Dispatch(ctx, &event); err != nil {
		return fmt.Errorf("dispatch %s: %w", routingKey, err)
	}

	b.logger.DebugContext(ctx, "event dispatched",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"lab_id", event.Metadata.TenantID,
	)
	return nil
}

func (b *InProcessEventBus) Close() error { return nil }
