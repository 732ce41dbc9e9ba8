package eventbus

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Publisher delivers encoded ConsumedEvent envelopes. The outbox processor
// is its only caller.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// NoopPublisher acknowledges and discards every event. The container picks
// it when there is no broker and the audit log is switched off, so the
// outbox still drains.
type NoopPublisher struct {
	logger  *slog.Logger
	dropped atomic.Uint64
}

// NewNoopPublisher creates a NoopPublisher.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	n := p.dropped.Add(1)
	p.logger.DebugContext(ctx, "event discarded",
		"routing_key", routingKey,
		"size", len(payload),
		"dropped_total", n,
	)
	return nil
}

// Dropped is the number of events discarded so far.
func (p *NoopPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *NoopPublisher) Close() error { return nil }
