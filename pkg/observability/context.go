package observability

import (
	"context"

	"github.com/google/uuid"
)

// Attribute keys used in logs and metrics.
const (
	CorrelationIDKey  = "correlation_id"
	RequestIDKey      = "request_id"
	LabIDKey          = "lab_id"
	SubscriptionIDKey = "subscription_id"
	OperationKey      = "operation"
	DurationKey       = "duration_ms"
	ErrorKey          = "error"
)

// ctxKey is unexported so no other package can collide with these values.
type ctxKey int

const (
	correlationIDCtx ctxKey = iota
	requestIDCtx
	labIDCtx
)

func withID(ctx context.Context, key ctxKey, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(key).(string)
	return id
}

// WithCorrelationID sets the correlation ID. An empty id generates one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withID(ctx, correlationIDCtx, id)
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return idFrom(ctx, correlationIDCtx)
}

// WithRequestID sets the request ID. An empty id generates one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestIDCtx, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return idFrom(ctx, requestIDCtx)
}

// WithLabID tags the context with the lab being operated on.
func WithLabID(ctx context.Context, labID uuid.UUID) context.Context {
	return context.WithValue(ctx, labIDCtx, labID.String())
}

// LabIDFromContext returns the lab tag, or "".
func LabIDFromContext(ctx context.Context) string {
	return idFrom(ctx, labIDCtx)
}

// NewRequestContext opens a unit of traced work with a fresh request ID.
// The correlation ID is parentCorrelationID, or new when that is empty.
func NewRequestContext(ctx context.Context, parentCorrelationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), parentCorrelationID)
}
