package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

const sqlitePlanColumns = `id, name, price, currency, duration_days, features, active`

// SQLitePlanRepository implements domain.PlanRepository with SQLite.
type SQLitePlanRepository struct {
	conn database.Connection
}

// NewSQLitePlanRepository creates a new repository.
func NewSQLitePlanRepository(conn database.Connection) *SQLitePlanRepository {
	return &SQLitePlanRepository{conn: conn}
}

// FindByID returns the plan with id, or nil.
func (r *SQLitePlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+sqlitePlanColumns+` FROM plans WHERE id = ?`, id.String())
	return r.scan(row)
}

// FindByName returns the plan named name, or nil.
func (r *SQLitePlanRepository) FindByName(ctx context.Context, name string) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+sqlitePlanColumns+` FROM plans WHERE name = ?`, name)
	return r.scan(row)
}

// List returns every plan, cheapest first.
func (r *SQLitePlanRepository) List(ctx context.Context) ([]*domain.Plan, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+sqlitePlanColumns+` FROM plans ORDER BY CAST(price AS REAL), name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		plan, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Upsert inserts the plan or updates the one with the same name. plan.ID is
// set to the stored id.
func (r *SQLitePlanRepository) Upsert(ctx context.Context, plan *domain.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	features, err := encodeFeatures(plan.Features)
	if err != nil {
		return err
	}
	now := formatSQLiteTime(time.Now())

	query := `
		INSERT INTO plans (
			id, name, price, currency, duration_days, features, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			duration_days = excluded.duration_days,
			features = excluded.features,
			active = excluded.active,
			updated_at = excluded.updated_at
		RETURNING id
	`
	var idStr string
	err = database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, query,
		plan.ID.String(),
		plan.Name,
		plan.Price.String(),
		plan.Currency,
		plan.DurationDays,
		string(features),
		plan.Active,
		now,
		now,
	).Scan(&idStr)
	if err != nil {
		return err
	}
	plan.ID, err = uuid.Parse(idStr)
	return err
}

func (r *SQLitePlanRepository) scan(row database.Row) (*domain.Plan, error) {
	var (
		idStr    string
		priceStr string
		features string
		plan     domain.Plan
	)
	err := row.Scan(&idStr, &plan.Name, &priceStr, &plan.Currency, &plan.DurationDays, &features, &plan.Active)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	if plan.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if plan.Price, err = parsePrice(priceStr); err != nil {
		return nil, err
	}
	if plan.Features, err = decodeFeatures([]byte(features)); err != nil {
		return nil, err
	}
	return &plan, nil
}

var _ domain.PlanRepository = (*SQLitePlanRepository)(nil)
