package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/convert"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/eventbus"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/resilience"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// ProcessorConfig holds configuration for the outbox processor.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxRetries is the number of attempts before a message is dead-lettered.
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration

	// Retention is how long published messages are kept. Zero disables cleanup.
	Retention       time.Duration
	CleanupInterval time.Duration

	// Breaker guards the publisher. An empty Name disables it.
	Breaker resilience.BreakerConfig
}

// DefaultProcessorConfig returns the settings used when nothing is configured.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		Retention:        7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
		Breaker:          resilience.DefaultBreakerConfig("outbox_publisher"),
	}
}

// Processor relays outbox messages to the event publisher. Each message is
// published, retried with exponential backoff, or dead-lettered once
// MaxRetries attempts have failed. While the breaker is open the batch is
// abandoned and no attempt is counted against the remaining messages.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	breaker   *resilience.Breaker
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	published atomic.Uint64
	failed    atomic.Uint64
	dead      atomic.Uint64

	statsMu         sync.Mutex
	lastError       string
	lastErrorAt     *time.Time
	lastProcessedAt *time.Time
	oldestMessageAt *time.Time
}

// NewProcessor creates a Processor. A nil metrics records nothing.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, metrics observability.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	p := &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   metrics,
		now:       time.Now,
	}
	if config.Breaker.Name != "" {
		p.breaker = resilience.NewBreaker(config.Breaker, p.logger, resilience.StateGauge(metrics))
	}
	return p
}

// Start runs the polling loop in the background until ctx is done or Stop
// is called. Starting a running processor does nothing.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(runCtx, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries,
	)
	return nil
}

// Stop cancels the loop and waits for the batch in flight.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether the polling loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	var cleanup <-chan time.Time
	if p.config.Retention > 0 && p.config.CleanupInterval > 0 {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		case <-cleanup:
			if _, err := p.Cleanup(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to clean up outbox", "error", err)
			}
		}
	}
}

// ProcessOnce handles one batch of due messages synchronously. Only a
// failure to load the batch is returned; per-message failures are recorded
// on the message.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.noteError(err)
		return err
	}
	p.noteBatch(batch)

	for _, msg := range batch {
		err := p.publish(ctx, msg)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			p.logger.Warn("publisher circuit open, deferring batch", "remaining", len(batch))
			p.noteError(err)
			return nil
		}
		p.settle(ctx, msg, err)
	}
	return nil
}

func (p *Processor) publish(ctx context.Context, msg *Message) error {
	body, err := msg.Envelope()
	if err != nil {
		return err
	}
	send := func() error { return p.publisher.Publish(ctx, msg.RoutingKey, body) }
	if p.breaker == nil {
		return send()
	}
	return p.breaker.Execute(send)
}

// settle records the outcome of one publish attempt.
func (p *Processor) settle(ctx context.Context, msg *Message, publishErr error) {
	tag := observability.T("routing_key", msg.RoutingKey)

	if publishErr == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message as published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			return
		}
		p.published.Add(1)
		p.metrics.Counter(observability.MetricEventsPublished, 1, tag)
		return
	}

	metadata := msg.EventMetadata()
	p.logger.Warn("failed to publish message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"attempt", msg.RetryCount+1,
		observability.CorrelationIDKey, metadata.CorrelationID,
		observability.LabIDKey, metadata.TenantID,
		"error", publishErr,
	)
	p.metrics.Counter(observability.MetricEventsFailed, 1, tag)
	p.noteError(publishErr)

	if msg.RetryCount+1 >= p.config.MaxRetries {
		p.dead.Add(1)
		if err := p.repo.MarkDead(ctx, msg.ID, publishErr.Error()); err != nil {
			p.logger.Error("failed to dead-letter message", "id", msg.ID, "error", err)
		}
		return
	}

	p.failed.Add(1)
	next := p.now().Add(p.backoff(msg.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, msg.ID, publishErr.Error(), next); err != nil {
		p.logger.Error("failed to schedule message retry", "id", msg.ID, "error", err)
	}
}

// backoff doubles from RetryBackoffBase per attempt, capped at RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	base := p.config.RetryBackoffBase
	if base <= 0 {
		base = time.Second
	}
	ceiling := p.config.RetryBackoffMax
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	d := base << convert.Uint(attempt-1)
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

// Cleanup deletes published messages older than the configured retention.
func (p *Processor) Cleanup(ctx context.Context) (int64, error) {
	if p.config.Retention <= 0 {
		return 0, nil
	}
	deleted, err := p.repo.DeleteOld(ctx, p.config.Retention)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		p.logger.Info("outbox cleaned up", "deleted", deleted, "retention", p.config.Retention)
	}
	return deleted, nil
}

// Stats is a snapshot of processor activity since it was created.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// GetStats returns a snapshot of processor activity. LagSeconds is the age
// of the oldest message in the last batch.
func (p *Processor) GetStats() Stats {
	stats := Stats{
		IsRunning:      p.IsRunning(),
		PublishedCount: p.published.Load(),
		FailedCount:    p.failed.Load(),
		DeadCount:      p.dead.Load(),
	}

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	stats.LastError = p.lastError
	stats.LastErrorAt = p.lastErrorAt
	stats.LastProcessedAt = p.lastProcessedAt
	stats.OldestMessageAt = p.oldestMessageAt
	if p.oldestMessageAt != nil && p.lastProcessedAt != nil {
		stats.LagSeconds = p.lastProcessedAt.Sub(*p.oldestMessageAt).Seconds()
	}
	return stats
}

func (p *Processor) noteError(err error) {
	now := p.now()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.lastError = err.Error()
	p.lastErrorAt = &now
}

func (p *Processor) noteBatch(batch []*Message) {
	now := p.now()
	var oldest *time.Time
	for _, msg := range batch {
		if oldest == nil || msg.CreatedAt.Before(*oldest) {
			created := msg.CreatedAt
			oldest = &created
		}
	}

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.lastProcessedAt = &now
	p.oldestMessageAt = oldest
}
