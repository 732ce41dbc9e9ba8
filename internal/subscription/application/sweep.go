package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/sohel7709/pathlab/internal/shared/domain"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/resilience"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// SweepConfig configures the Sweeper.
type SweepConfig struct {
	// DefaultPlanName is the free plan expired trials are moved to.
	DefaultPlanName string
	// Retry bounds attempts at the snapshot query.
	Retry   resilience.RetryConfig
	Breaker resilience.BreakerConfig
}

// DefaultSweepConfig downgrades to Basic and retries the snapshot three times.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		DefaultPlanName: domain.DefaultPlanName,
		Retry:           resilience.DefaultRetryConfig(),
		Breaker:         resilience.DefaultBreakerConfig("sweep_snapshot"),
	}
}

// SweepFailure is a subscription the sweep could not process.
type SweepFailure struct {
	LabID          uuid.UUID
	SubscriptionID uuid.UUID
	Err            error
}

// SweepReport summarises one sweep. Expired counts every subscription moved
// to expired; each of those is also counted as exactly one of Downgraded,
// Deactivated or Superseded.
type SweepReport struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Examined    int
	Expired     int
	Downgraded  int
	Deactivated int
	Superseded  int
	Skipped     int
	Failures    []SweepFailure
}

type sweepOutcome string

const (
	outcomeSkipped     sweepOutcome = "skipped"
	outcomeSuperseded  sweepOutcome = "superseded"
	outcomeDowngraded  sweepOutcome = "downgraded"
	outcomeDeactivated sweepOutcome = "deactivated"
	outcomeFailed      sweepOutcome = "failed"
)

// downgradeError marks a failure to create the replacement subscription.
// The record is then reprocessed without a downgrade.
type downgradeError struct{ err error }

func (e *downgradeError) Error() string { return "downgrade: " + e.err.Error() }
func (e *downgradeError) Unwrap() error { return e.err }

// Sweeper expires subscriptions whose period has ended and applies the
// downgrade policy.
type Sweeper struct {
	Dependencies
	defaultPlanName string
	retry           resilience.RetryConfig
	breaker         *resilience.Breaker
}

// NewSweeper creates a Sweeper.
func NewSweeper(deps Dependencies, cfg SweepConfig) *Sweeper {
	deps = deps.withDefaults()
	if cfg.DefaultPlanName == "" {
		cfg.DefaultPlanName = domain.DefaultPlanName
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = resilience.DefaultBreakerConfig("sweep_snapshot")
	}

	breaker := resilience.NewBreaker(cfg.Breaker, deps.Logger, resilience.StateGauge(deps.Metrics))

	return &Sweeper{
		Dependencies:    deps,
		defaultPlanName: cfg.DefaultPlanName,
		retry:           cfg.Retry,
		breaker:         breaker,
	}
}

// Sweep expires every trial or active subscription whose end date is
// before now. Records are processed independently: a failing record is
// reported in SweepReport.Failures and the sweep carries on. An error is
// returned only when the snapshot could not be read or ctx ended the run.
// Running Sweep twice with the same now changes nothing the second time.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	started := time.Now()
	report := SweepReport{StartedAt: now}
	logger := s.Logger.With("sweep_time", now)

	var expired []*domain.Subscription
	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, s.retry, func(ctx context.Context) error {
			var err error
			expired, err = s.Subscriptions.FindExpired(ctx, now)
			return err
		})
	})
	if err != nil {
		s.Metrics.Counter(observability.MetricSweepRuns, 1, observability.T("result", "failed"))
		logger.ErrorContext(ctx, "expiry sweep aborted", "error", err)
		return report, fmt.Errorf("select expired subscriptions: %w", err)
	}
	report.Examined = len(expired)

	defaultPlan, downgradeBlocked := s.loadDefaultPlan(ctx, logger)

	var runErr error
	for _, candidate := range expired {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		outcome, err := s.expire(ctx, candidate, now, defaultPlan, downgradeBlocked)
		var dErr *downgradeError
		if errors.As(err, &dErr) {
			logger.WarnContext(ctx, "downgrade failed, deactivating lab",
				observability.LabIDKey, candidate.LabID,
				observability.SubscriptionIDKey, candidate.ID,
				"error", dErr.err,
			)
			outcome, err = s.expire(ctx, candidate, now, nil, true)
		}
		if err != nil {
			outcome = outcomeFailed
			report.Failures = append(report.Failures, SweepFailure{
				LabID:          candidate.LabID,
				SubscriptionID: candidate.ID,
				Err:            err,
			})
			logger.ErrorContext(ctx, "failed to expire subscription",
				observability.LabIDKey, candidate.LabID,
				observability.SubscriptionIDKey, candidate.ID,
				"error", err,
			)
		}
		report.record(outcome)
		s.Metrics.Counter(observability.MetricSweepSubscriptions, 1, observability.T("outcome", string(outcome)))
	}

	report.FinishedAt = now.Add(time.Since(started))
	s.Metrics.Timing(observability.MetricSweepDuration, time.Since(started))
	result := "success"
	if runErr != nil {
		result = "failed"
	}
	s.Metrics.Counter(observability.MetricSweepRuns, 1, observability.T("result", result))

	logger.InfoContext(ctx, "expiry sweep finished",
		"examined", report.Examined,
		"expired", report.Expired,
		"downgraded", report.Downgraded,
		"deactivated", report.Deactivated,
		"superseded", report.Superseded,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	return report, runErr
}

// loadDefaultPlan returns the downgrade target. A missing or inactive plan
// means trials are simply deactivated; a failed lookup counts as a failed
// downgrade.
func (s *Sweeper) loadDefaultPlan(ctx context.Context, logger *slog.Logger) (*domain.Plan, bool) {
	plan, err := s.activePlanByName(ctx, s.defaultPlanName)
	switch {
	case err == nil:
		return plan, false
	case errors.Is(err, domain.ErrPlanNotFound):
		logger.WarnContext(ctx, "default plan unavailable, expired trials will be deactivated", "plan", s.defaultPlanName)
		return nil, false
	default:
		logger.WarnContext(ctx, "failed to load default plan", "plan", s.defaultPlanName, "error", err)
		return nil, true
	}
}

// expire processes one snapshot record in its own transaction under the lab
// lock. With downgradeFailed set, an expired current trial leaves the lab in
// LabDowngradeFailed instead of being moved to the default plan.
func (s *Sweeper) expire(ctx context.Context, candidate *domain.Subscription, now time.Time, defaultPlan *domain.Plan, downgradeFailed bool) (sweepOutcome, error) {
	var outcome sweepOutcome
	err := s.inLabTransaction(ctx, candidate.LabID, func(txCtx context.Context) error {
		sub, err := s.Subscriptions.FindByID(txCtx, candidate.ID)
		if err != nil {
			return err
		}
		// Already handled by an earlier or concurrent run.
		if sub == nil || !sub.Status.GrantsAccess() || !sub.IsExpiredAt(now) {
			outcome = outcomeSkipped
			return nil
		}

		prior := sub.Status
		if err := sub.Expire(now); err != nil {
			return err
		}
		ok, err := s.Subscriptions.UpdateStatus(txCtx, sub, prior)
		if err != nil {
			return fmt.Errorf("mark expired: %w", err)
		}
		if !ok {
			outcome = outcomeSkipped
			return nil
		}
		events := []sharedDomain.DomainEvent{domain.NewSubscriptionEvent(domain.RoutingKeyExpired, sub, now)}

		lab, err := s.lockLab(txCtx, sub.LabID)
		if err != nil {
			return err
		}
		if !lab.IsCurrent(sub.ID) {
			s.Logger.InfoContext(txCtx, "expired subscription was already superseded",
				observability.LabIDKey, lab.ID,
				observability.SubscriptionIDKey, sub.ID,
			)
			outcome = outcomeSuperseded
			return s.saveEvents(txCtx, lab.ID, events...)
		}

		if prior == domain.StatusTrial && defaultPlan != nil && !downgradeFailed {
			replacement, err := s.downgrade(txCtx, sub, defaultPlan, now)
			if err != nil {
				return &downgradeError{err: err}
			}
			lab.PointTo(replacement.ID, now)
			if err := s.Labs.Update(txCtx, lab); err != nil {
				return fmt.Errorf("update lab: %w", err)
			}
			outcome = outcomeDowngraded
			events = append(events, domain.NewDowngradedEvent(sub, replacement, now))
			return s.saveEvents(txCtx, lab.ID, events...)
		}

		status := domain.LabInactive
		reason := "expired"
		if prior == domain.StatusTrial && downgradeFailed {
			status = domain.LabDowngradeFailed
			reason = "downgrade_failed"
		}
		lab.Detach(status, now)
		if err := s.Labs.Update(txCtx, lab); err != nil {
			return fmt.Errorf("update lab: %w", err)
		}
		outcome = outcomeDeactivated
		events = append(events, domain.NewLabDeactivatedEvent(lab, reason, now))
		return s.saveEvents(txCtx, lab.ID, events...)
	})
	if err != nil {
		return outcomeFailed, err
	}

	switch outcome {
	case outcomeDowngraded:
		s.recordTransitions(domain.StatusExpired, domain.StatusActive)
	case outcomeDeactivated, outcomeSuperseded:
		s.recordTransitions(domain.StatusExpired)
	}
	return outcome, nil
}

// downgrade creates the default-plan subscription replacing an expired trial.
func (s *Sweeper) downgrade(ctx context.Context, expired *domain.Subscription, plan *domain.Plan, now time.Time) (*domain.Subscription, error) {
	replacement, err := domain.NewSubscription(expired.LabID, plan, domain.StatusActive, domain.ProviderNone, now)
	if err != nil {
		return nil, err
	}
	replacement.PaymentID = domain.AutoDowngradePaymentID
	if err := s.Subscriptions.Create(ctx, replacement); err != nil {
		return nil, err
	}
	return replacement, nil
}

func (r *SweepReport) record(outcome sweepOutcome) {
	switch outcome {
	case outcomeSkipped:
		r.Skipped++
	case outcomeSuperseded:
		r.Expired++
		r.Superseded++
	case outcomeDowngraded:
		r.Expired++
		r.Downgraded++
	case outcomeDeactivated:
		r.Expired++
		r.Deactivated++
	}
}
