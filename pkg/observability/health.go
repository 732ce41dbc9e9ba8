package observability

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus is a component's readiness. Later values are worse.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// HealthCheckResult is one component's check outcome.
type HealthCheckResult struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	CheckedAt  time.Time    `json:"checked_at"`
}

// HealthChecker checks one component. It should return promptly once ctx
// is done.
type HealthChecker func(ctx context.Context) HealthCheckResult

// HealthRegistry holds the readiness checks of a process.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds or replaces the checker for component.
func (r *HealthRegistry) Register(component string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[component] = checker
}

// Check runs every checker concurrently and returns the results by
// component.
func (r *HealthRegistry) Check(ctx context.Context) map[string]HealthCheckResult {
	r.mu.RLock()
	checkers := maps.Clone(r.checkers)
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]HealthCheckResult, len(checkers))
		g       errgroup.Group
	)
	for component, check := range checkers {
		g.Go(func() error {
			start := time.Now()
			result := check(ctx)
			result.DurationMS = time.Since(start).Milliseconds()
			result.CheckedAt = time.Now().UTC()

			mu.Lock()
			results[component] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// OverallHealth summarises one run of every check.
type OverallHealth struct {
	Status    HealthStatus                 `json:"status"`
	CheckedAt time.Time                    `json:"checked_at"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// GetOverallHealth runs all checks. The worst component status wins; no
// checks at all is healthy.
func (r *HealthRegistry) GetOverallHealth(ctx context.Context) OverallHealth {
	checks := r.Check(ctx)
	status := HealthStatusHealthy
	for _, result := range checks {
		if result.Status.severity() > status.severity() {
			status = result.Status
		}
	}
	return OverallHealth{Status: status, CheckedAt: time.Now().UTC(), Checks: checks}
}

// Handler serves GetOverallHealth as JSON. Unhealthy answers 503 so load
// balancers and orchestrators stop routing to the process; degraded still
// answers 200.
func (r *HealthRegistry) Handler(timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()

		health := r.GetOverallHealth(ctx)
		code := http.StatusOK
		if health.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(health)
	})
}

// PingHealthChecker turns a ping into a checker. A failed ping reports
// failureStatus: unhealthy for the database, degraded for Redis and
// RabbitMQ.
func PingHealthChecker(component string, failureStatus HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		if err := ping(ctx); err != nil {
			return HealthCheckResult{Status: failureStatus, Message: component + ": " + err.Error()}
		}
		return HealthCheckResult{Status: HealthStatusHealthy}
	}
}
