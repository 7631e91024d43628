// Package store hides the database driver behind a small scoped-connection
// interface: a Store hands out one Conn per request, a Conn runs one
// transaction at a time, and every Conn must be released by its caller.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverMySQL     Driver = "mysql"
	DriverPostgres  Driver = "postgres"
	DriverSQLite    Driver = "sqlite"
	DriverSQLServer Driver = "sqlserver"
)

// ErrUnsupportedDriver is returned by Open and BuildDSN for unknown drivers.
var ErrUnsupportedDriver = errors.New("unsupported driver")

// Drivers lists the supported backends.
func Drivers() []Driver {
	return []Driver{DriverMySQL, DriverPostgres, DriverSQLite, DriverSQLServer}
}

// ParseDriver maps a config value to a Driver. The empty string is MySQL.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mysql":
		return DriverMySQL, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "sqlserver", "mssql":
		return DriverSQLServer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, s)
}

// Options configures Open.
type Options struct {
	Driver            Driver
	DSN               string
	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	// ReadOnly puts every session into read-only mode where the backend supports it.
	ReadOnly bool
}

// Result holds the rows of a read statement. Columns keeps driver order;
// Rows is never nil.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Store is a source of database connections.
type Store interface {
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
	Dialect() Dialect
}

// Conn is a single database connection checked out of a Store.
type Conn interface {
	Begin(ctx context.Context) (Tx, error)
	// Release returns the connection. It is safe to call more than once.
	Release()
}

// Tx is a transaction on a Conn.
type Tx interface {
	Query(ctx context.Context, sql string, args ...any) (*Result, error)
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Commit(ctx context.Context) error
	// Rollback is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.DSN == "" {
		return nil, errors.New("store: DSN must be non-empty")
	}
	switch opts.Driver {
	case DriverPostgres:
		return openPgx(ctx, opts)
	case DriverMySQL, DriverSQLite, DriverSQLServer:
		return openSQL(ctx, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, opts.Driver)
}
