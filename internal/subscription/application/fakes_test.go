package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/outbox"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// memStore is an in-memory database for plans, subscriptions and labs.
// Transactions are serialised and Rollback restores the state from Begin.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	plans map[uuid.UUID]domain.Plan
	subs  map[uuid.UUID]domain.Subscription
	labs  map[uuid.UUID]domain.Lab

	// failCreate, when set, can reject a subscription insert.
	failCreate func(sub *domain.Subscription) error
	// findExpiredErrs are returned by successive FindExpired calls.
	findExpiredErrs  []error
	findExpiredCalls int
}

type memSnapshot struct {
	subs map[uuid.UUID]domain.Subscription
	labs map[uuid.UUID]domain.Lab
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		plans: make(map[uuid.UUID]domain.Plan),
		subs:  make(map[uuid.UUID]domain.Subscription),
		labs:  make(map[uuid.UUID]domain.Lab),
	}
}

func (s *memStore) Begin(ctx context.Context) (context.Context, error) {
	s.txMu.Lock()
	s.mu.Lock()
	snap := &memSnapshot{subs: copySubs(s.subs), labs: copyLabs(s.labs)}
	s.mu.Unlock()
	return context.WithValue(ctx, memTxKey{}, snap), nil
}

func (s *memStore) Commit(context.Context) error {
	s.txMu.Unlock()
	return nil
}

func (s *memStore) Rollback(ctx context.Context) error {
	snap, ok := ctx.Value(memTxKey{}).(*memSnapshot)
	if !ok {
		return errors.New("no transaction")
	}
	s.mu.Lock()
	s.subs = snap.subs
	s.labs = snap.labs
	s.mu.Unlock()
	s.txMu.Unlock()
	return nil
}

func copySubs(in map[uuid.UUID]domain.Subscription) map[uuid.UUID]domain.Subscription {
	out := make(map[uuid.UUID]domain.Subscription, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyLabs(in map[uuid.UUID]domain.Lab) map[uuid.UUID]domain.Lab {
	out := make(map[uuid.UUID]domain.Lab, len(in))
	for k, v := range in {
		out[k] = cloneLab(v)
	}
	return out
}

func cloneLab(l domain.Lab) domain.Lab {
	if l.CurrentSubscriptionID != nil {
		id := *l.CurrentSubscriptionID
		l.CurrentSubscriptionID = &id
	}
	return l
}

// state returns a copy of all subscriptions and labs for comparisons.
func (s *memStore) state() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{subs: copySubs(s.subs), labs: copyLabs(s.labs)}
}

func (s *memStore) sub(t *testing.T, id uuid.UUID) domain.Subscription {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	require.True(t, ok, "subscription %s not found", id)
	return sub
}

func (s *memStore) lab(t *testing.T, id uuid.UUID) *domain.Lab {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	lab, ok := s.labs[id]
	require.True(t, ok, "lab %s not found", id)
	clone := cloneLab(lab)
	return &clone
}

func (s *memStore) putSub(sub domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = sub
}

func (s *memStore) putLab(lab domain.Lab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labs[lab.ID] = cloneLab(lab)
}

type memPlanRepo struct{ s *memStore }

func (r memPlanRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan, ok := r.s.plans[id]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (r memPlanRepo) FindByName(_ context.Context, name string) (*domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, plan := range r.s.plans {
		if plan.Name == name {
			return &plan, nil
		}
	}
	return nil, nil
}

func (r memPlanRepo) List(context.Context) ([]*domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plans := make([]*domain.Plan, 0, len(r.s.plans))
	for _, plan := range r.s.plans {
		plans = append(plans, &plan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Price.LessThan(plans[j].Price) })
	return plans, nil
}

func (r memPlanRepo) Upsert(_ context.Context, plan *domain.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	r.s.plans[plan.ID] = *plan
	return nil
}

type memSubscriptionRepo struct{ s *memStore }

func (r memSubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	if r.s.failCreate != nil {
		if err := r.s.failCreate(sub); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.subs[sub.ID] = *sub
	return nil
}

func (r memSubscriptionRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r memSubscriptionRepo) FindExpired(_ context.Context, now time.Time) ([]*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	call := r.s.findExpiredCalls
	r.s.findExpiredCalls++
	if call < len(r.s.findExpiredErrs) && r.s.findExpiredErrs[call] != nil {
		return nil, r.s.findExpiredErrs[call]
	}

	var expired []*domain.Subscription
	for _, sub := range r.s.subs {
		if sub.Status.GrantsAccess() && sub.EndDate.Before(now) {
			expired = append(expired, &sub)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].EndDate.Before(expired[j].EndDate) })
	return expired, nil
}

func (r memSubscriptionRepo) ListByLab(_ context.Context, labID uuid.UUID) ([]*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var subs []*domain.Subscription
	for _, sub := range r.s.subs {
		if sub.LabID == labID {
			subs = append(subs, &sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (r memSubscriptionRepo) UpdateStatus(_ context.Context, sub *domain.Subscription, from domain.Status) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.subs[sub.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = sub.Status
	stored.PaymentID = sub.PaymentID
	stored.UpdatedAt = sub.UpdatedAt
	r.s.subs[sub.ID] = stored
	return true, nil
}

type memLabRepo struct{ s *memStore }

func (r memLabRepo) Create(_ context.Context, lab *domain.Lab) error {
	r.s.putLab(*lab)
	return nil
}

func (r memLabRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Lab, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lab, ok := r.s.labs[id]
	if !ok {
		return nil, nil
	}
	lab = cloneLab(lab)
	return &lab, nil
}

func (r memLabRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Lab, error) {
	return r.FindByID(ctx, id)
}

func (r memLabRepo) Update(_ context.Context, lab *domain.Lab) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.labs[lab.ID]; !ok {
		return domain.ErrLabNotFound
	}
	r.s.labs[lab.ID] = cloneLab(*lab)
	return nil
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store     *memStore
	outbox    *outbox.InMemoryRepository
	metrics   *observability.InMemoryMetrics
	clock     *testClock
	deps      Dependencies
	lifecycle *LifecycleService
	sweeper   *Sweeper

	trial   *domain.Plan
	basic   *domain.Plan
	premium *domain.Plan
}

var fixtureStart = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	f := &fixture{
		store:   store,
		outbox:  outbox.NewInMemoryRepository(),
		metrics: observability.NewInMemoryMetrics(),
		clock:   &testClock{now: fixtureStart},
	}
	f.deps = Dependencies{
		Plans:         memPlanRepo{store},
		Subscriptions: memSubscriptionRepo{store},
		Labs:          memLabRepo{store},
		Outbox:        f.outbox,
		UnitOfWork:    store,
		Clock:         f.clock,
		Metrics:       f.metrics,
	}

	f.trial = f.addPlan(t, domain.TrialPlanName, "0", 14, true)
	f.basic = f.addPlan(t, domain.DefaultPlanName, "0", 30, true)
	f.premium = f.addPlan(t, "Premium", "4999.00", 30, true)

	f.lifecycle = NewLifecycleService(f.deps, LifecycleConfig{})
	cfg := DefaultSweepConfig()
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	f.sweeper = NewSweeper(f.deps, cfg)
	return f
}

func (f *fixture) addPlan(t *testing.T, name, price string, days int, active bool) *domain.Plan {
	t.Helper()
	limit := 100
	plan := &domain.Plan{
		Name:         name,
		Price:        decimal.RequireFromString(price),
		Currency:     "INR",
		DurationDays: days,
		Active:       active,
		Features: map[string]domain.FeatureValue{
			domain.FeatureReportTemplates: {Enabled: true},
			domain.FeatureMaxPatients:     {Enabled: true, Limit: &limit},
			domain.FeaturePDFBranding:     {Enabled: name == "Premium"},
		},
	}
	require.NoError(t, memPlanRepo{f.store}.Upsert(context.Background(), plan))
	return plan
}

func (f *fixture) removePlan(plan *domain.Plan) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	delete(f.store.plans, plan.ID)
}

func (f *fixture) newLab(t *testing.T) uuid.UUID {
	t.Helper()
	lab, err := f.lifecycle.EnsureLab(context.Background(), uuid.New(), "City Diagnostics")
	require.NoError(t, err)
	return lab.ID
}

// activePremium seeds a lab whose current subscription is an active paid
// plan ending at end.
func (f *fixture) activePremium(t *testing.T, end time.Time) (uuid.UUID, uuid.UUID) {
	t.Helper()
	labID := f.newLab(t)
	subID := uuid.New()
	start := end.AddDate(0, 0, -f.premium.DurationDays)
	f.store.putSub(domain.Subscription{
		ID:              subID,
		LabID:           labID,
		PlanID:          f.premium.ID,
		StartDate:       start,
		EndDate:         end,
		Status:          domain.StatusActive,
		PaymentProvider: domain.ProviderRazorpay,
		PaymentID:       "pay_premium",
		CreatedAt:       start,
		UpdatedAt:       start,
	})
	lab := f.store.lab(t, labID)
	lab.PointTo(subID, start)
	f.store.putLab(*lab)
	return labID, subID
}

func (f *fixture) routingKeys() []string {
	var keys []string
	for _, msg := range f.outbox.All() {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}
