package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

// SQLiteLabRepository implements domain.LabRepository with SQLite.
type SQLiteLabRepository struct {
	conn database.Connection
}

// NewSQLiteLabRepository creates a new repository.
func NewSQLiteLabRepository(conn database.Connection) *SQLiteLabRepository {
	return &SQLiteLabRepository{conn: conn}
}

// Create inserts a lab.
func (r *SQLiteLabRepository) Create(ctx context.Context, lab *domain.Lab) error {
	query := `
		INSERT INTO labs (id, name, current_subscription_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		lab.ID.String(),
		lab.Name,
		nullUUIDString(lab.CurrentSubscriptionID),
		string(lab.Status),
		formatSQLiteTime(lab.CreatedAt),
		formatSQLiteTime(lab.UpdatedAt),
	)
	return err
}

// FindByID returns the lab with id, or nil.
func (r *SQLiteLabRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Lab, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT id, name, current_subscription_id, status, created_at, updated_at
		FROM labs WHERE id = ?`, id.String())
	return scanSQLiteLab(row)
}

// FindByIDForUpdate reads the lab inside the caller's transaction. SQLite
// transactions begin IMMEDIATE, so the write lock is already held.
func (r *SQLiteLabRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Lab, error) {
	if !database.InTx(ctx) {
		return nil, fmt.Errorf("lock lab %s: %w", id, database.ErrNoTransaction)
	}
	return r.FindByID(ctx, id)
}

// Update writes the lab's pointer and status.
func (r *SQLiteLabRepository) Update(ctx context.Context, lab *domain.Lab) error {
	query := `
		UPDATE labs
		SET name = ?, current_subscription_id = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	n, err := database.Affected(database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		lab.Name,
		nullUUIDString(lab.CurrentSubscriptionID),
		string(lab.Status),
		formatSQLiteTime(lab.UpdatedAt),
		lab.ID.String(),
	))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLabNotFound
	}
	return nil
}

func scanSQLiteLab(row database.Row) (*domain.Lab, error) {
	var (
		idStr, status          string
		currentID              sql.NullString
		createdStr, updatedStr string
		lab                    domain.Lab
	)
	err := row.Scan(&idStr, &lab.Name, &currentID, &status, &createdStr, &updatedStr)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	lab.Status = domain.LabStatus(status)
	if lab.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if lab.CurrentSubscriptionID, err = parseNullUUID(currentID); err != nil {
		return nil, err
	}
	if lab.CreatedAt, err = parseSQLiteTime(createdStr); err != nil {
		return nil, err
	}
	if lab.UpdatedAt, err = parseSQLiteTime(updatedStr); err != nil {
		return nil, err
	}
	return &lab, nil
}

var _ domain.LabRepository = (*SQLiteLabRepository)(nil)
