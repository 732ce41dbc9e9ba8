package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/sohel7709/pathlab/pkg/observability"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// DefaultBreakerConfig trips after five consecutive failures and retries
// again after a minute.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         0,
		Timeout:          time.Minute,
	}
}

// Breaker guards a dependency with a gobreaker circuit breaker.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

// NewBreaker creates a Breaker. onStateChange may be nil.
func NewBreaker(cfg BreakerConfig, logger *slog.Logger, onStateChange func(name, to string)) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Cancellation is the caller's doing, not the dependency's.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if onStateChange != nil {
				onStateChange(name, to.String())
			}
		},
	}

	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker[any](settings),
		logger: logger,
	}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the breaker state as a string.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

var breakerStates = []string{"closed", "half-open", "open"}

// StateGauge returns an onStateChange hook that sets the breaker state
// gauge to 1 for the new state and 0 for the others.
func StateGauge(metrics observability.Metrics) func(name, to string) {
	return func(name, to string) {
		for _, state := range breakerStates {
			value := 0.0
			if state == to {
				value = 1
			}
			metrics.Gauge(observability.MetricCircuitBreakerState, value,
				observability.T("breaker", name), observability.T("state", state))
		}
	}
}
