package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

const sqliteSubscriptionColumns = `id, lab_id, plan_id, start_date, end_date, status,
	payment_provider, payment_id, auto_renew, created_at, updated_at`

// SQLiteSubscriptionRepository implements domain.SubscriptionRepository with SQLite.
type SQLiteSubscriptionRepository struct {
	conn database.Connection
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(conn database.Connection) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{conn: conn}
}

// Create inserts a new subscription record.
func (r *SQLiteSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, lab_id, plan_id, start_date, end_date, status,
			payment_provider, payment_id, auto_renew, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		sub.ID.String(),
		sub.LabID.String(),
		sub.PlanID.String(),
		formatSQLiteTime(sub.StartDate),
		formatSQLiteTime(sub.EndDate),
		string(sub.Status),
		string(sub.PaymentProvider),
		nullString(sub.PaymentID),
		sub.AutoRenew,
		formatSQLiteTime(sub.CreatedAt),
		formatSQLiteTime(sub.UpdatedAt),
	)
	return err
}

// FindByID returns the subscription with id, or nil.
func (r *SQLiteSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+sqliteSubscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())
	sub, err := scanSQLiteSubscription(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return sub, err
}

// FindExpired returns trial and active subscriptions that ended before now,
// oldest first.
func (r *SQLiteSubscriptionRepository) FindExpired(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	query := `SELECT ` + sqliteSubscriptionColumns + `
		FROM subscriptions
		WHERE status IN (?, ?) AND end_date < ?
		ORDER BY end_date, id`
	return r.list(ctx, query, expirableStatuses[0], expirableStatuses[1], formatSQLiteTime(now))
}

// ListByLab returns the lab's subscription history, newest first.
func (r *SQLiteSubscriptionRepository) ListByLab(ctx context.Context, labID uuid.UUID) ([]*domain.Subscription, error) {
	query := `SELECT ` + sqliteSubscriptionColumns + `
		FROM subscriptions
		WHERE lab_id = ?
		ORDER BY created_at DESC, id`
	return r.list(ctx, query, labID.String())
}

// UpdateStatus applies sub's status change if the stored status is still from.
func (r *SQLiteSubscriptionRepository) UpdateStatus(ctx context.Context, sub *domain.Subscription, from domain.Status) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = ?, payment_id = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	n, err := database.Affected(database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		string(sub.Status),
		nullString(sub.PaymentID),
		formatSQLiteTime(sub.UpdatedAt),
		sub.ID.String(),
		string(from),
	))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteSubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSQLiteSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		idStr, labIDStr, planIDStr string
		startStr, endStr           string
		status, provider           string
		paymentID                  sql.NullString
		autoRenew                  bool
		createdStr, updatedStr     string
	)
	if err := row.Scan(
		&idStr, &labIDStr, &planIDStr, &startStr, &endStr, &status,
		&provider, &paymentID, &autoRenew, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		Status:          domain.Status(status),
		PaymentProvider: domain.PaymentProvider(provider),
		PaymentID:       paymentID.String,
		AutoRenew:       autoRenew,
	}
	var err error
	if sub.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if sub.LabID, err = uuid.Parse(labIDStr); err != nil {
		return nil, err
	}
	if sub.PlanID, err = uuid.Parse(planIDStr); err != nil {
		return nil, err
	}
	if sub.StartDate, err = parseSQLiteTime(startStr); err != nil {
		return nil, err
	}
	if sub.EndDate, err = parseSQLiteTime(endStr); err != nil {
		return nil, err
	}
	if sub.CreatedAt, err = parseSQLiteTime(createdStr); err != nil {
		return nil, err
	}
	if sub.UpdatedAt, err = parseSQLiteTime(updatedStr); err != nil {
		return nil, err
	}
	return sub, nil
}

var _ domain.SubscriptionRepository = (*SQLiteSubscriptionRepository)(nil)
