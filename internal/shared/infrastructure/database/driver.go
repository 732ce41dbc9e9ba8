package database

import (
	"fmt"
	"strings"
)

// Driver is the database backend behind a Connection.
type Driver string

const (
	// DriverPostgres is the hosted multi-tenant backend.
	DriverPostgres Driver = "postgres"
	// DriverSQLite is the single-lab local backend.
	DriverSQLite Driver = "sqlite"
	// DriverAuto detects the backend from the URL.
	DriverAuto Driver = "auto"
)

func (d Driver) String() string {
	return string(d)
}

// ParseDriver reads a DATABASE_DRIVER value. Empty means auto.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DriverAuto:
		return DriverAuto, nil
	case DriverPostgres, DriverSQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

// DetectDriver picks a driver from a connection string. An empty URL means
// local SQLite so a fresh checkout runs without any setup.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"),
		strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"),
		strings.HasSuffix(url, ".sqlite"),
		strings.HasSuffix(url, ".sqlite3"):
		return DriverSQLite
	}
	return DriverPostgres
}

// IsValid reports whether d names a concrete backend.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}
