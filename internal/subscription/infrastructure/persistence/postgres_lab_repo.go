package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

const postgresLabSelect = `
	SELECT id, name, current_subscription_id, status, created_at, updated_at
	FROM labs WHERE id = $1`

// PostgresLabRepository implements domain.LabRepository with PostgreSQL.
type PostgresLabRepository struct {
	conn database.Connection
}

// NewPostgresLabRepository creates a new repository.
func NewPostgresLabRepository(conn database.Connection) *PostgresLabRepository {
	return &PostgresLabRepository{conn: conn}
}

// Create inserts a lab.
func (r *PostgresLabRepository) Create(ctx context.Context, lab *domain.Lab) error {
	query := `
		INSERT INTO labs (id, name, current_subscription_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		lab.ID,
		lab.Name,
		lab.CurrentSubscriptionID,
		string(lab.Status),
		lab.CreatedAt.UTC(),
		lab.UpdatedAt.UTC(),
	)
	return err
}

// FindByID returns the lab with id, or nil.
func (r *PostgresLabRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Lab, error) {
	return scanPostgresLab(database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, postgresLabSelect, id))
}

// FindByIDForUpdate reads the lab with a row lock held until the caller's
// transaction ends, serialising lifecycle writes across processes.
func (r *PostgresLabRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Lab, error) {
	if !database.InTx(ctx) {
		return nil, fmt.Errorf("lock lab %s: %w", id, database.ErrNoTransaction)
	}
	return scanPostgresLab(database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, postgresLabSelect+` FOR UPDATE`, id))
}

// Update writes the lab's pointer and status.
func (r *PostgresLabRepository) Update(ctx context.Context, lab *domain.Lab) error {
	query := `
		UPDATE labs
		SET name = $1, current_subscription_id = $2, status = $3, updated_at = $4
		WHERE id = $5
	`
	n, err := database.Affected(database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		lab.Name,
		lab.CurrentSubscriptionID,
		string(lab.Status),
		lab.UpdatedAt.UTC(),
		lab.ID,
	))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLabNotFound
	}
	return nil
}

func scanPostgresLab(row database.Row) (*domain.Lab, error) {
	var (
		lab    domain.Lab
		status string
	)
	err := row.Scan(&lab.ID, &lab.Name, &lab.CurrentSubscriptionID, &status, &lab.CreatedAt, &lab.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	lab.Status = domain.LabStatus(status)
	return &lab, nil
}

var _ domain.LabRepository = (*PostgresLabRepository)(nil)
