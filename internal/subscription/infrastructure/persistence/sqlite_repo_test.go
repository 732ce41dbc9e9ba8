package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database/sqlite"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/migrations"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

func setupSubscriptionTestDB(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.Open(ctx, database.Config{
		SQLitePath: filepath.Join(t.TempDir(), "pathlab.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, migrations.Run(ctx, conn))
	return conn
}

func intPtr(v int) *int { return &v }

func seedPlan(t *testing.T, repo *SQLitePlanRepository, name string, price string, days int) *domain.Plan {
	t.Helper()
	plan := &domain.Plan{
		Name:         name,
		Price:        decimal.RequireFromString(price),
		Currency:     "INR",
		DurationDays: days,
		Active:       true,
		Features: map[string]domain.FeatureValue{
			domain.FeatureReportTemplates: {Enabled: true},
			domain.FeatureMaxPatients:     {Enabled: true, Limit: intPtr(500)},
		},
	}
	require.NoError(t, repo.Upsert(context.Background(), plan))
	return plan
}

func seedLab(t *testing.T, repo *SQLiteLabRepository, at time.Time) *domain.Lab {
	t.Helper()
	lab := &domain.Lab{
		ID:        uuid.New(),
		Name:      "City Diagnostics",
		Status:    domain.LabInactive,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, repo.Create(context.Background(), lab))
	return lab
}

func TestSQLitePlanRepository_UpsertAndFind(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	repo := NewSQLitePlanRepository(conn)
	ctx := context.Background()

	premium := seedPlan(t, repo, "Premium", "2999.00", 30)
	seedPlan(t, repo, "Trial", "0", 14)
	seedPlan(t, repo, "Basic", "499.50", 30)

	byID, err := repo.FindByID(ctx, premium.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Premium", byID.Name)
	assert.True(t, byID.Price.Equal(decimal.RequireFromString("2999")))
	assert.True(t, byID.HasFeature(domain.FeatureReportTemplates))
	limit, ok := byID.Limit(domain.FeatureMaxPatients)
	assert.True(t, ok)
	assert.Equal(t, 500, limit)

	byName, err := repo.FindByName(ctx, "Trial")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.True(t, byName.IsFree())
	assert.Equal(t, 14, byName.DurationDays)

	missing, err := repo.FindByName(ctx, "Enterprise")
	require.NoError(t, err)
	assert.Nil(t, missing)

	plans, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, []string{"Trial", "Basic", "Premium"}, []string{plans[0].Name, plans[1].Name, plans[2].Name})
}

func TestSQLitePlanRepository_UpsertKeepsID(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	repo := NewSQLitePlanRepository(conn)

	first := seedPlan(t, repo, "Basic", "499", 30)
	again := &domain.Plan{Name: "Basic", Price: decimal.NewFromInt(599), DurationDays: 30, Active: false}
	require.NoError(t, repo.Upsert(context.Background(), again))

	assert.Equal(t, first.ID, again.ID)
	stored, err := repo.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(599)))
}

func TestSQLitePlanRepository_UpsertRejectsInvalid(t *testing.T) {
	repo := NewSQLitePlanRepository(setupSubscriptionTestDB(t))

	err := repo.Upsert(context.Background(), &domain.Plan{Name: "Broken", DurationDays: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)
}

func TestSQLiteSubscriptionRepository_RoundTrip(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	plans := NewSQLitePlanRepository(conn)
	labs := NewSQLiteLabRepository(conn)
	subs := NewSQLiteSubscriptionRepository(conn)
	ctx := context.Background()

	start := time.Date(2025, 1, 1, 10, 0, 0, 123456789, time.UTC)
	plan := seedPlan(t, plans, "Premium", "2999", 30)
	lab := seedLab(t, labs, start)

	sub, err := domain.NewSubscription(lab.ID, plan, domain.StatusPendingPayment, domain.ProviderRazorpay, start)
	require.NoError(t, err)
	require.NoError(t, subs.Create(ctx, sub))

	got, err := subs.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sub.LabID, got.LabID)
	assert.Equal(t, sub.PlanID, got.PlanID)
	assert.True(t, got.StartDate.Equal(start))
	assert.True(t, got.EndDate.Equal(time.Date(2025, 1, 31, 10, 0, 0, 123456789, time.UTC)))
	assert.Equal(t, domain.StatusPendingPayment, got.Status)
	assert.Equal(t, domain.ProviderRazorpay, got.PaymentProvider)
	assert.Empty(t, got.PaymentID)
	assert.False(t, got.AutoRenew)

	missing, err := subs.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteSubscriptionRepository_UpdateStatusIsConditional(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	plans := NewSQLitePlanRepository(conn)
	labs := NewSQLiteLabRepository(conn)
	subs := NewSQLiteSubscriptionRepository(conn)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	lab := seedLab(t, labs, now)
	sub, err := domain.NewSubscription(lab.ID, seedPlan(t, plans, "Premium", "2999", 30), domain.StatusPendingPayment, domain.ProviderStripe, now)
	require.NoError(t, err)
	require.NoError(t, subs.Create(ctx, sub))

	first := *sub
	require.NoError(t, first.Activate("pay_123", now.Add(time.Minute)))
	updated, err := subs.UpdateStatus(ctx, &first, domain.StatusPendingPayment)
	require.NoError(t, err)
	assert.True(t, updated)

	// A second confirmation raced on a stale copy must not apply.
	second := *sub
	require.NoError(t, second.Activate("pay_456", now.Add(2*time.Minute)))
	updated, err = subs.UpdateStatus(ctx, &second, domain.StatusPendingPayment)
	require.NoError(t, err)
	assert.False(t, updated)

	stored, err := subs.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, stored.Status)
	assert.Equal(t, "pay_123", stored.PaymentID)
}

func TestSQLiteSubscriptionRepository_FindExpired(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	plans := NewSQLitePlanRepository(conn)
	labs := NewSQLiteLabRepository(conn)
	subs := NewSQLiteSubscriptionRepository(conn)
	ctx := context.Background()

	plan := seedPlan(t, plans, "Basic", "499", 30)
	now := time.Date(2025, 6, 15, 2, 0, 0, 0, time.UTC)

	create := func(status domain.Status, start time.Time) *domain.Subscription {
		lab := seedLab(t, labs, start)
		sub, err := domain.NewSubscription(lab.ID, plan, domain.StatusActive, domain.ProviderNone, start)
		require.NoError(t, err)
		sub.Status = status
		require.NoError(t, subs.Create(ctx, sub))
		return sub
	}

	expiredActive := create(domain.StatusActive, now.AddDate(0, 0, -40))
	expiredTrial := create(domain.StatusTrial, now.AddDate(0, 0, -31))
	create(domain.StatusActive, now.AddDate(0, 0, -10))             // still running
	create(domain.StatusCancelled, now.AddDate(0, 0, -60))          // terminal
	create(domain.StatusPendingPayment, now.AddDate(0, 0, -60))     // never swept
	boundary := create(domain.StatusActive, now.AddDate(0, 0, -30)) // ends exactly now

	found, err := subs.FindExpired(ctx, now)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(found))
	for _, s := range found {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []uuid.UUID{expiredActive.ID, expiredTrial.ID}, ids)
	assert.NotContains(t, ids, boundary.ID, "end date equal to now is not expired")

	later, err := subs.FindExpired(ctx, now.Add(time.Nanosecond))
	require.NoError(t, err)
	assert.Len(t, later, 3)
}

func TestSQLiteSubscriptionRepository_ListByLabNewestFirst(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	plans := NewSQLitePlanRepository(conn)
	labs := NewSQLiteLabRepository(conn)
	subs := NewSQLiteSubscriptionRepository(conn)
	ctx := context.Background()

	plan := seedPlan(t, plans, "Trial", "0", 14)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lab := seedLab(t, labs, start)
	other := seedLab(t, labs, start)

	var created []uuid.UUID
	for i := 0; i < 3; i++ {
		sub, err := domain.NewSubscription(lab.ID, plan, domain.StatusTrial, domain.ProviderNone, start.AddDate(0, i, 0))
		require.NoError(t, err)
		require.NoError(t, subs.Create(ctx, sub))
		created = append(created, sub.ID)
	}
	otherSub, err := domain.NewSubscription(other.ID, plan, domain.StatusTrial, domain.ProviderNone, start)
	require.NoError(t, err)
	require.NoError(t, subs.Create(ctx, otherSub))

	history, err := subs.ListByLab(ctx, lab.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, created[2], history[0].ID)
	assert.Equal(t, created[0], history[2].ID)
}

func TestSQLiteLabRepository_PointerRoundTrip(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	labs := NewSQLiteLabRepository(conn)
	ctx := context.Background()

	now := time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC)
	lab := seedLab(t, labs, now)

	got, err := labs.FindByID(ctx, lab.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.CurrentSubscriptionID)
	assert.Equal(t, domain.LabInactive, got.Status)

	subID := uuid.New()
	got.PointTo(subID, now.Add(time.Hour))
	require.NoError(t, labs.Update(ctx, got))

	_, err = labs.FindByIDForUpdate(ctx, lab.ID)
	assert.ErrorIs(t, err, database.ErrNoTransaction, "row locks need a transaction")

	locked, err := labs.FindByID(ctx, lab.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsCurrent(subID))
	assert.True(t, locked.IsActive())

	locked.Detach(domain.LabDowngradeFailed, now.Add(2*time.Hour))
	require.NoError(t, labs.Update(ctx, locked))

	final, err := labs.FindByID(ctx, lab.ID)
	require.NoError(t, err)
	assert.Nil(t, final.CurrentSubscriptionID)
	assert.Equal(t, domain.LabDowngradeFailed, final.Status)

	missing, err := labs.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = labs.Update(ctx, &domain.Lab{ID: uuid.New(), Status: domain.LabInactive})
	assert.ErrorIs(t, err, domain.ErrLabNotFound)
}

func TestSQLiteRepositories_RollbackDiscardsWrites(t *testing.T) {
	conn := setupSubscriptionTestDB(t)
	labs := NewSQLiteLabRepository(conn)
	uow := database.NewUnitOfWork(conn)
	ctx := context.Background()

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	lab := seedLab(t, labs, now)

	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	inTx, err := labs.FindByIDForUpdate(txCtx, lab.ID)
	require.NoError(t, err)
	inTx.PointTo(uuid.New(), now)
	require.NoError(t, labs.Update(txCtx, inTx))
	require.NoError(t, uow.Rollback(txCtx))

	after, err := labs.FindByID(ctx, lab.ID)
	require.NoError(t, err)
	assert.Nil(t, after.CurrentSubscriptionID)
}
