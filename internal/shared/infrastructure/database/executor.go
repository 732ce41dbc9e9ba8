package database

import "context"

// Executor runs SQL on a pooled connection or inside a transaction.
// Placeholders follow the driver: $1 for PostgreSQL, ? for SQLite.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Connection is the pooled handle each driver package provides.
type Connection interface {
	Executor
	Driver() Driver
	BeginTx(ctx context.Context) (Transaction, error)
	Ping(ctx context.Context) error
	Close() error
}

// Transaction is an Executor bound to one database transaction.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Row is a single-row result. pgx.Row and *sql.Row satisfy it.
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a multi-row result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Result is what an Exec changed.
type Result interface {
	RowsAffected() (int64, error)
}

// Affected unwraps an Exec into the number of rows it changed.
//
//	n, err := database.Affected(exec.Exec(ctx, query, args...))
func Affected(result Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
