package outbox

import (
	"context"
	"time"
)

// Repository stores outbox messages. Save and SaveBatch join the unit of
// work carried by ctx, which is what makes an event and its state change
// commit together.
type Repository interface {
	Save(ctx context.Context, msg *Message) error
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished returns up to limit due messages, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, id int64) error
	// MarkFailed counts a failed attempt and schedules the next one.
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error
	// MarkDead counts the final attempt and parks the message for good.
	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld drops published messages older than olderThan and returns
	// how many went. Dead-lettered messages are kept for inspection.
	DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error)
}
