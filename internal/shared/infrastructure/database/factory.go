package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config holds database configuration.
type Config struct {
	// Driver selects the backend. Empty or DriverAuto detects it from URL.
	Driver Driver
	// URL is the PostgreSQL connection string.
	URL string
	// SQLitePath is the SQLite file. Empty means DefaultSQLitePath.
	SQLitePath string
	// MaxConns caps the PostgreSQL pool. Zero keeps the pgx default.
	MaxConns int
}

// ResolvedDriver returns the concrete driver for c.
func (c Config) ResolvedDriver() Driver {
	if c.Driver == "" || c.Driver == DriverAuto {
		return DetectDriver(c.URL)
	}
	return c.Driver
}

// OpenFunc opens a Connection for one driver.
type OpenFunc func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]OpenFunc{}
)

// Register makes a driver available to NewConnection. Driver packages call
// it from init, so importing them for side effects is enough.
func Register(driver Driver, open OpenFunc) {
	if !driver.IsValid() {
		panic(fmt.Sprintf("database: register of invalid driver %q", driver))
	}
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// NewConnection opens a connection with the driver cfg resolves to.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.ResolvedDriver()
	if !driver.IsValid() {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	openersMu.RLock()
	open, ok := openers[driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver %s is not registered", driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath returns the per-user SQLite database path.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".pathlab", "data.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
