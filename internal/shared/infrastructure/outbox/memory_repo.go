package outbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// InMemoryRepository is a Repository for tests. It has no transactions, so
// messages saved inside a rolled-back unit of work survive.
type InMemoryRepository struct {
	mu       sync.Mutex
	messages []*Message
	lastID   int64
	now      func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

func (r *InMemoryRepository) Save(ctx context.Context, msg *Message) error {
	return r.SaveBatch(ctx, []*Message{msg})
}

func (r *InMemoryRepository) SaveBatch(_ context.Context, msgs []*Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.lastID++
		msg.ID = r.lastID
		r.messages = append(r.messages, msg)
	}
	return nil
}

func (r *InMemoryRepository) GetUnpublished(_ context.Context, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	due := make([]*Message, 0, limit)
	for _, msg := range r.messages {
		if len(due) == limit {
			break
		}
		if msg.Due(now) {
			due = append(due, msg)
		}
	}
	return due, nil
}

func (r *InMemoryRepository) MarkPublished(_ context.Context, id int64) error {
	return r.update(id, func(msg *Message, now time.Time) {
		msg.PublishedAt = &now
		msg.NextRetryAt = nil
	})
}

func (r *InMemoryRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	return r.update(id, func(msg *Message, _ time.Time) {
		msg.RetryCount++
		msg.LastError = &errMsg
		msg.NextRetryAt = &nextRetryAt
	})
}

func (r *InMemoryRepository) MarkDead(_ context.Context, id int64, reason string) error {
	return r.update(id, func(msg *Message, now time.Time) {
		msg.RetryCount++
		msg.LastError = &reason
		msg.DeadLetteredAt = &now
		msg.DeadLetterReason = &reason
	})
}

func (r *InMemoryRepository) DeleteOld(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	before := len(r.messages)
	r.messages = slices.DeleteFunc(r.messages, func(msg *Message) bool {
		return msg.State() == StatePublished && msg.PublishedAt.Before(cutoff)
	})
	return int64(before - len(r.messages)), nil
}

// All returns every stored message in insertion order.
func (r *InMemoryRepository) All() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.messages)
}

func (r *InMemoryRepository) update(id int64, fn func(*Message, time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.messages, func(msg *Message) bool { return msg.ID == id })
	if i < 0 {
		return fmt.Errorf("outbox message %d not found", id)
	}
	fn(r.messages[i], r.now())
	return nil
}
