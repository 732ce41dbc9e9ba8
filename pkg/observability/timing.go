package observability

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// TimeOperationResult runs fn as the named operation. It records the
// duration, a run count and, on failure, an error count, and logs the
// outcome. Either logger or metrics may be nil.
func TimeOperationResult[T any](ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	recordOperation(ctx, logger, metrics, operation, time.Since(start), err)
	return result, err
}

// TimeOperation is TimeOperationResult for operations without a result.
func TimeOperation(ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	recordOperation(ctx, logger, metrics, operation, time.Since(start), err)
	return err
}

func recordOperation(ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, elapsed time.Duration, err error) {
	if metrics != nil {
		tag := T(OperationKey, operation)
		metrics.Timing(MetricOperationDuration, elapsed, tag)
		metrics.Counter(MetricOperationTotal, 1, tag)
		if err != nil {
			metrics.Counter(MetricOperationErrors, 1, tag)
		}
	}

	if logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String(OperationKey, operation),
		slog.Int64(DurationKey, elapsed.Milliseconds()),
	}
	switch {
	case err == nil:
		logger.LogAttrs(ctx, slog.LevelDebug, "operation completed", attrs...)
	case errors.Is(err, context.Canceled):
		logger.LogAttrs(ctx, slog.LevelWarn, "operation cancelled", attrs...)
	default:
		logger.LogAttrs(ctx, slog.LevelError, "operation failed", append(attrs, slog.Any(ErrorKey, err))...)
	}
}
