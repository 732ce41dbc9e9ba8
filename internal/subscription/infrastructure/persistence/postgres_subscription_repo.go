package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

const postgresSubscriptionColumns = `id, lab_id, plan_id, start_date, end_date, status,
	payment_provider, COALESCE(payment_id, ''), auto_renew, created_at, updated_at`

// PostgresSubscriptionRepository implements domain.SubscriptionRepository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	conn database.Connection
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(conn database.Connection) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{conn: conn}
}

// Create inserts a new subscription record.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, lab_id, plan_id, start_date, end_date, status,
			payment_provider, payment_id, auto_renew, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)
	`
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		sub.ID,
		sub.LabID,
		sub.PlanID,
		sub.StartDate.UTC(),
		sub.EndDate.UTC(),
		string(sub.Status),
		string(sub.PaymentProvider),
		sub.PaymentID,
		sub.AutoRenew,
		sub.CreatedAt.UTC(),
		sub.UpdatedAt.UTC(),
	)
	return err
}

// FindByID returns the subscription with id, or nil.
func (r *PostgresSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+postgresSubscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanPostgresSubscription(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return sub, err
}

// FindExpired returns trial and active subscriptions that ended before now,
// oldest first.
func (r *PostgresSubscriptionRepository) FindExpired(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	query := `SELECT ` + postgresSubscriptionColumns + `
		FROM subscriptions
		WHERE status = ANY($1) AND end_date < $2
		ORDER BY end_date, id`
	return r.list(ctx, query, pq.Array(expirableStatuses), now.UTC())
}

// ListByLab returns the lab's subscription history, newest first.
func (r *PostgresSubscriptionRepository) ListByLab(ctx context.Context, labID uuid.UUID) ([]*domain.Subscription, error) {
	query := `SELECT ` + postgresSubscriptionColumns + `
		FROM subscriptions
		WHERE lab_id = $1
		ORDER BY created_at DESC, id`
	return r.list(ctx, query, labID)
}

// UpdateStatus applies sub's status change if the stored status is still from.
func (r *PostgresSubscriptionRepository) UpdateStatus(ctx context.Context, sub *domain.Subscription, from domain.Status) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = $1, payment_id = NULLIF($2, ''), updated_at = $3
		WHERE id = $4 AND status = $5
	`
	n, err := database.Affected(database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		string(sub.Status),
		sub.PaymentID,
		sub.UpdatedAt.UTC(),
		sub.ID,
		string(from),
	))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresSubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanPostgresSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanPostgresSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		sub              domain.Subscription
		status, provider string
	)
	if err := row.Scan(
		&sub.ID, &sub.LabID, &sub.PlanID, &sub.StartDate, &sub.EndDate, &status,
		&provider, &sub.PaymentID, &sub.AutoRenew, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.Status = domain.Status(status)
	sub.PaymentProvider = domain.PaymentProvider(provider)
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	return &sub, nil
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
