package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/lock"
	"github.com/sohel7709/pathlab/internal/subscription/application"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

// Mock implementations

type mockSweeper struct {
	mu      sync.Mutex
	calls   []time.Time
	report  application.SweepReport
	err     error
	block   chan struct{}
	started chan struct{}
}

func (m *mockSweeper) Sweep(ctx context.Context, now time.Time) (application.SweepReport, error) {
	m.mu.Lock()
	m.calls = append(m.calls, now)
	m.mu.Unlock()
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	return m.report, m.err
}

func (m *mockSweeper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var fixedNow = time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC)

func fixedClock() domain.Clock {
	return domain.ClockFunc(func() time.Time { return fixedNow })
}

// Tests

func TestNewExpirySweepWorker_Defaults(t *testing.T) {
	worker := NewExpirySweepWorker(&mockSweeper{}, nil, nil, ExpirySweepWorkerConfig{}, nil)

	assert.NotNil(t, worker)
	assert.False(t, worker.IsRunning())
	assert.Equal(t, DefaultSweepInterval, worker.config.Interval)
	assert.Equal(t, DefaultSweepLockTTL, worker.config.LockTTL)
}

func TestExpirySweepWorker_RunWithNilSweeper(t *testing.T) {
	worker := NewExpirySweepWorker(nil, nil, nil, DefaultExpirySweepWorkerConfig(), nil)

	err := worker.Run(context.Background())
	assert.NoError(t, err)
	assert.False(t, worker.IsRunning())
}

func TestExpirySweepWorker_RunOnce(t *testing.T) {
	sweeper := &mockSweeper{report: application.SweepReport{Examined: 2, Expired: 2}}
	worker := NewExpirySweepWorker(sweeper, lock.NewMemoryLock(), fixedClock(), DefaultExpirySweepWorkerConfig(), nil)

	report, ran, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, report.Expired)
	assert.Equal(t, []time.Time{fixedNow}, sweeper.calls)
}

func TestExpirySweepWorker_RunOnceReturnsSweepError(t *testing.T) {
	sweeper := &mockSweeper{err: errors.New("snapshot failed")}
	worker := NewExpirySweepWorker(sweeper, lock.NewMemoryLock(), fixedClock(), DefaultExpirySweepWorkerConfig(), nil)

	_, ran, err := worker.RunOnce(context.Background())
	assert.True(t, ran)
	assert.EqualError(t, err, "snapshot failed")
}

func TestExpirySweepWorker_SkipsWhenLockHeld(t *testing.T) {
	locker := lock.NewMemoryLock()
	release, ok, err := locker.TryAcquire(context.Background(), SweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sweeper := &mockSweeper{}
	worker := NewExpirySweepWorker(sweeper, locker, fixedClock(), DefaultExpirySweepWorkerConfig(), nil)

	_, ran, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 0, sweeper.callCount())

	release()
	_, ran, err = worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestExpirySweepWorker_NoOverlapInProcess(t *testing.T) {
	sweeper := &mockSweeper{block: make(chan struct{}), started: make(chan struct{}, 1)}
	worker := NewExpirySweepWorker(sweeper, nil, fixedClock(), DefaultExpirySweepWorkerConfig(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ran, err := worker.RunOnce(context.Background())
		assert.NoError(t, err)
		assert.True(t, ran)
	}()
	<-sweeper.started

	_, ran, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	close(sweeper.block)
	<-done
	assert.Equal(t, 1, sweeper.callCount())
}

func TestExpirySweepWorker_RunAndStop(t *testing.T) {
	sweeper := &mockSweeper{}
	config := ExpirySweepWorkerConfig{Interval: 10 * time.Millisecond, LockTTL: time.Second}
	worker := NewExpirySweepWorker(sweeper, lock.NewMemoryLock(), fixedClock(), config, nil)

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	require.Eventually(t, func() bool { return sweeper.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, worker.IsRunning())

	worker.Stop()
	worker.Stop()
	require.NoError(t, <-done)
	assert.False(t, worker.IsRunning())
}

func TestExpirySweepWorker_RunContextCancelled(t *testing.T) {
	sweeper := &mockSweeper{}
	worker := NewExpirySweepWorker(sweeper, nil, fixedClock(), DefaultExpirySweepWorkerConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeper.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
