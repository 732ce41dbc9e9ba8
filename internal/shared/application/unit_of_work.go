package application

import "context"

// UnitOfWork groups repository writes into one transaction. Begin returns a
// context carrying the transaction; repositories pick it up from there.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WithUnitOfWork runs fn inside a unit of work and commits when it returns
// nil. fn's error is returned as is, even if the rollback also fails. A
// panic in fn rolls back before it propagates.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	committing := false
	defer func() {
		if !committing {
			_ = uow.Rollback(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}
	committing = true
	return uow.Commit(txCtx)
}
