package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

const postgresPlanColumns = `id, name, price::text, currency, duration_days, features, active`

// PostgresPlanRepository implements domain.PlanRepository with PostgreSQL.
type PostgresPlanRepository struct {
	conn database.Connection
}

// NewPostgresPlanRepository creates a new repository.
func NewPostgresPlanRepository(conn database.Connection) *PostgresPlanRepository {
	return &PostgresPlanRepository{conn: conn}
}

// FindByID returns the plan with id, or nil.
func (r *PostgresPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+postgresPlanColumns+` FROM plans WHERE id = $1`, id)
	return scanPostgresPlan(row)
}

// FindByName returns the plan named name, or nil.
func (r *PostgresPlanRepository) FindByName(ctx context.Context, name string) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+postgresPlanColumns+` FROM plans WHERE name = $1`, name)
	return scanPostgresPlan(row)
}

// List returns every plan, cheapest first.
func (r *PostgresPlanRepository) List(ctx context.Context) ([]*domain.Plan, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+postgresPlanColumns+` FROM plans ORDER BY price, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		plan, err := scanPostgresPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Upsert inserts the plan or updates the one with the same name. plan.ID is
// set to the stored id.
func (r *PostgresPlanRepository) Upsert(ctx context.Context, plan *domain.Plan) error {
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

	query := `
		INSERT INTO plans (id, name, price, currency, duration_days, features, active)
		VALUES ($1, $2, $3::numeric, $4, $5, $6::jsonb, $7)
		ON CONFLICT (name) DO UPDATE SET
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			duration_days = EXCLUDED.duration_days,
			features = EXCLUDED.features,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING id
	`
	return database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, query,
		plan.ID,
		plan.Name,
		plan.Price.String(),
		plan.Currency,
		plan.DurationDays,
		string(features),
		plan.Active,
	).Scan(&plan.ID)
}

func scanPostgresPlan(row database.Row) (*domain.Plan, error) {
	var (
		priceStr string
		features []byte
		plan     domain.Plan
	)
	err := row.Scan(&plan.ID, &plan.Name, &priceStr, &plan.Currency, &plan.DurationDays, &features, &plan.Active)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if plan.Price, err = parsePrice(priceStr); err != nil {
		return nil, err
	}
	if plan.Features, err = decodeFeatures(features); err != nil {
		return nil, err
	}
	return &plan, nil
}

var _ domain.PlanRepository = (*PostgresPlanRepository)(nil)
