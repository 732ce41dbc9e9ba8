package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/lock"
	"github.com/sohel7709/pathlab/internal/subscription/application"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// DefaultSweepInterval is the default interval between expiry sweeps.
const DefaultSweepInterval = 24 * time.Hour

// DefaultSweepLockTTL bounds how long a crashed instance can block other sweeps.
const DefaultSweepLockTTL = 30 * time.Minute

// SweepLockKey is the cluster-wide lock held for the duration of a sweep.
const SweepLockKey = "sweep:expiry"

// Sweeper runs one expiry sweep.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (application.SweepReport, error)
}

// ExpirySweepWorkerConfig configures the sweep worker.
type ExpirySweepWorkerConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// DefaultExpirySweepWorkerConfig returns the default configuration.
func DefaultExpirySweepWorkerConfig() ExpirySweepWorkerConfig {
	return ExpirySweepWorkerConfig{
		Interval: DefaultSweepInterval,
		LockTTL:  DefaultSweepLockTTL,
	}
}

// ExpirySweepWorker runs the expiry sweep on a fixed interval. At most one
// sweep runs at a time per process, and the locker keeps other processes
// sharing it from sweeping concurrently.
type ExpirySweepWorker struct {
	sweeper Sweeper
	locker  lock.Locker
	clock   domain.Clock
	config  ExpirySweepWorkerConfig
	logger  *slog.Logger

	running  atomic.Bool
	sweeping atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewExpirySweepWorker creates a new expiry sweep worker. A nil locker only
// guards against overlap within this process.
func NewExpirySweepWorker(
	sweeper Sweeper,
	locker lock.Locker,
	clock domain.Clock,
	config ExpirySweepWorkerConfig,
	logger *slog.Logger,
) *ExpirySweepWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = lock.NoopLock{}
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultSweepLockTTL
	}
	return &ExpirySweepWorker{
		sweeper: sweeper,
		locker:  locker,
		clock:   clock,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Run starts the worker and blocks until context is cancelled or Stop() is called.
func (w *ExpirySweepWorker) Run(ctx context.Context) error {
	if w.sweeper == nil {
		w.logger.Warn("expiry sweeper not configured, worker will not start")
		return nil
	}

	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("expiry sweep worker started",
		"interval", w.config.Interval,
		"lock_ttl", w.config.LockTTL,
	)

	// Run immediately on start
	w.runCycle(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry sweep worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.logger.Info("expiry sweep worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *ExpirySweepWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning returns true if the worker is currently running.
func (w *ExpirySweepWorker) IsRunning() bool {
	return w.running.Load()
}

// runCycle gives each scheduled sweep its own correlation ID, which the
// events it raises carry.
func (w *ExpirySweepWorker) runCycle(ctx context.Context) {
	ctx = observability.NewRequestContext(ctx, "")
	report, ran, err := w.RunOnce(ctx)
	switch {
	case err != nil:
		w.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
	case !ran:
		w.logger.DebugContext(ctx, "expiry sweep skipped, another sweep holds the lock")
	case len(report.Failures) > 0:
		w.logger.WarnContext(ctx, "expiry sweep finished with failures", "failed", len(report.Failures))
	}
}

// RunOnce performs a single sweep now. ran is false when another sweep was
// already in progress in this process or held the cluster lock.
func (w *ExpirySweepWorker) RunOnce(ctx context.Context) (report application.SweepReport, ran bool, err error) {
	if !w.sweeping.CompareAndSwap(false, true) {
		return report, false, nil
	}
	defer w.sweeping.Store(false)

	release, acquired, err := w.locker.TryAcquire(ctx, SweepLockKey, w.config.LockTTL)
	if err != nil {
		return report, false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return report, false, nil
	}
	defer release()

	report, err = w.sweeper.Sweep(ctx, w.clock.Now())
	return report, true, err
}
