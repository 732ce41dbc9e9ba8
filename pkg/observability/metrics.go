package observability

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	// Timing records a duration in seconds.
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// Metric names. They follow Prometheus conventions since the worker exports
// them on /metrics.
const (
	MetricOperationTotal    = "pathlab_operation_total"
	MetricOperationDuration = "pathlab_operation_duration_seconds"
	MetricOperationErrors   = "pathlab_operation_errors_total"

	// MetricSweepRuns is labelled result=success|failed.
	MetricSweepRuns = "pathlab_sweep_runs_total"
	// MetricSweepSubscriptions is labelled outcome=downgraded|deactivated|superseded|skipped|failed.
	MetricSweepSubscriptions = "pathlab_sweep_subscriptions_total"
	MetricSweepDuration      = "pathlab_sweep_duration_seconds"

	// MetricLifecycleTransitions is labelled to=<status>.
	MetricLifecycleTransitions = "pathlab_lifecycle_transitions_total"

	// MetricCircuitBreakerState is 1 for the breaker's current state label.
	MetricCircuitBreakerState = "pathlab_circuit_breaker_state"

	MetricEventsPublished = "pathlab_events_published_total"
	MetricEventsFailed    = "pathlab_events_failed_total"
	MetricAuditEvents     = "pathlab_audit_events_total"

	// MetricOutboxLag is the age of the oldest message in the last outbox batch.
	MetricOutboxLag = "pathlab_outbox_lag_seconds"
)

var metricHelp = map[string]string{
	MetricOperationTotal:       "Lifecycle operations executed.",
	MetricOperationDuration:    "Lifecycle operation latency in seconds.",
	MetricOperationErrors:      "Lifecycle operations that returned an error.",
	MetricSweepRuns:            "Expiry sweep runs by result.",
	MetricSweepSubscriptions:   "Subscriptions handled by the expiry sweep by outcome.",
	MetricSweepDuration:        "Expiry sweep duration in seconds.",
	MetricLifecycleTransitions: "Subscription status transitions by target status.",
	MetricCircuitBreakerState:  "Circuit breaker state, 1 for the current state.",
	MetricEventsPublished:      "Lifecycle events published to the broker.",
	MetricEventsFailed:         "Lifecycle event publish failures.",
	MetricAuditEvents:          "Lifecycle events written to the audit log.",
	MetricOutboxLag:            "Age in seconds of the oldest undelivered outbox message seen.",
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// InMemoryMetrics records into memory so tests can assert on what was
// emitted. Series are keyed by name and tag set; tag order is irrelevant.
type InMemoryMetrics struct {
	mu     sync.RWMutex
	series map[string]*memorySeries
}

type memorySeries struct {
	count   int64
	gauge   float64
	samples []float64
	timings []time.Duration
}

// NewInMemoryMetrics creates an empty InMemoryMetrics.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{series: make(map[string]*memorySeries)}
}

func (m *InMemoryMetrics) record(name string, tags []Tag, fn func(*memorySeries)) {
	key := seriesKey(name, tags)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[key]
	if !ok {
		s = &memorySeries{}
		m.series[key] = s
	}
	fn(s)
}

func (m *InMemoryMetrics) read(name string, tags []Tag) (memorySeries, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.series[seriesKey(name, tags)]
	if !ok {
		return memorySeries{}, false
	}
	return *s, true
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.record(name, tags, func(s *memorySeries) { s.count += value })
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.record(name, tags, func(s *memorySeries) { s.gauge = value })
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.record(name, tags, func(s *memorySeries) { s.samples = append(s.samples, value) })
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.record(name, tags, func(s *memorySeries) { s.timings = append(s.timings, duration) })
}

// GetCounter returns a counter's total, zero if never incremented.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	s, _ := m.read(name, tags)
	return s.count
}

// GetGauge returns a gauge's last value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	s, _ := m.read(name, tags)
	return s.gauge
}

// GetTimings returns a copy of the recorded durations.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	s, _ := m.read(name, tags)
	return slices.Clone(s.timings)
}

// seriesKey renders name and tags with the tags sorted by key.
func seriesKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := slices.Clone(tags)
	slices.SortFunc(sorted, func(a, b Tag) int { return strings.Compare(a.Key, b.Key) })

	var b strings.Builder
	b.WriteString(name)
	for _, t := range sorted {
		b.WriteString("{" + t.Key + "=" + t.Value + "}")
	}
	return b.String()
}
