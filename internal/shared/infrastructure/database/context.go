package database

import (
	"context"
	"sync/atomic"
)

type scopeKey struct{}

// txScope is one database transaction shared by every unit of work that
// joins it.
type txScope struct {
	tx Transaction
	// rollbackOnly is set when a joined unit rolls back. The owner can no
	// longer commit.
	rollbackOnly atomic.Bool
}

// frame is a unit of work's view of the scope. Only the owner ends the
// transaction.
type frame struct {
	scope *txScope
	owner bool
}

func withFrame(ctx context.Context, f frame) context.Context {
	return context.WithValue(ctx, scopeKey{}, f)
}

func frameFromContext(ctx context.Context) (frame, bool) {
	f, ok := ctx.Value(scopeKey{}).(frame)
	return f, ok && f.scope != nil
}

// TxFromContext returns the transaction ctx runs in, if any.
func TxFromContext(ctx context.Context) (Transaction, bool) {
	f, ok := frameFromContext(ctx)
	if !ok {
		return nil, false
	}
	return f.scope.tx, true
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := frameFromContext(ctx)
	return ok
}

// ExecutorFromContext returns the transaction carried by ctx, or conn when
// there is none. Repositories query through it so they take part in the
// caller's unit of work without knowing about it.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return conn
}
