package database

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoTransaction is returned by Commit and Rollback outside a transaction.
	ErrNoTransaction = errors.New("no transaction in context")
	// ErrRollbackOnly is returned by Commit when a joined unit of work
	// rolled back. The transaction has been rolled back.
	ErrRollbackOnly = errors.New("transaction marked rollback-only")
)

// UnitOfWork implements application.UnitOfWork on a Connection. Begin
// inside a running unit joins its transaction. A joined unit's Commit does
// nothing and its Rollback dooms the whole transaction.
type UnitOfWork struct {
	conn Connection
}

// NewUnitOfWork creates a UnitOfWork.
func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if f, ok := frameFromContext(ctx); ok {
		return withFrame(ctx, frame{scope: f.scope}), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return withFrame(ctx, frame{scope: &txScope{tx: tx}, owner: true}), nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	f, ok := frameFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !f.owner {
		return nil
	}
	if f.scope.rollbackOnly.Load() {
		if err := f.scope.tx.Rollback(ctx); err != nil {
			return errors.Join(ErrRollbackOnly, err)
		}
		return ErrRollbackOnly
	}
	return f.scope.tx.Commit(ctx)
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	f, ok := frameFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !f.owner {
		f.scope.rollbackOnly.Store(true)
		return nil
	}
	return f.scope.tx.Rollback(ctx)
}
