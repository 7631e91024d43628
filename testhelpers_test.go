package sqlgate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rickchristie/govner/pgflock/client"
	"github.com/rs/zerolog"

	"github.com/sqlgate/sqlgate/internal/store"
)

const (
	pgflockLockerPort = 9776
	pgflockPassword   = "pgflock"
)

// employeesSchema is a trimmed copy of the employees sample database.
var employeesSchema = []string{
	`CREATE TABLE employees (
		emp_no     INTEGER PRIMARY KEY,
		birth_date TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name  TEXT NOT NULL,
		gender     TEXT NOT NULL,
		hire_date  TEXT NOT NULL
	)`,
	`CREATE TABLE departments (
		dept_no   TEXT PRIMARY KEY,
		dept_name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE dept_emp (
		emp_no    INTEGER NOT NULL,
		dept_no   TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date   TEXT NOT NULL,
		PRIMARY KEY (emp_no, dept_no)
	)`,
	`CREATE VIEW current_dept_emp AS
		SELECT emp_no, dept_no, from_date, to_date FROM dept_emp WHERE to_date = '9999-01-01'`,
	`CREATE TABLE titles (
		emp_no    INTEGER NOT NULL,
		title     TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date   TEXT
	)`,
	`CREATE TABLE salaries (
		emp_no    INTEGER NOT NULL,
		salary    INTEGER NOT NULL,
		from_date TEXT NOT NULL,
		to_date   TEXT NOT NULL DEFAULT '9999-01-01'
	)`,
	`INSERT INTO employees VALUES
		(10001, '1953-09-02', 'Georgi', 'Facello', 'M', '1986-06-26'),
		(10002, '1964-06-02', 'Bezalel', 'Simmel', 'F', '1985-11-21'),
		(10003, '1959-12-03', 'Parto', 'Bamford', 'M', '1986-08-28')`,
	`INSERT INTO departments VALUES ('d001', 'Marketing'), ('d005', 'Development')`,
	`INSERT INTO dept_emp VALUES
		(10001, 'd005', '1986-06-26', '9999-01-01'),
		(10002, 'd001', '1985-11-21', '9999-01-01'),
		(10003, 'd005', '1986-08-28', '9999-01-01')`,
	`INSERT INTO titles VALUES
		(10001, 'Senior Engineer', '1986-06-26', NULL),
		(10002, 'Staff', '1996-08-03', '9999-01-01')`,
	`INSERT INTO salaries VALUES
		(10001, 50000, '1986-06-26', '1987-06-26'),
		(10001, 60117, '1987-06-26', '9999-01-01'),
		(10002, 65828, '1996-08-03', '9999-01-01'),
		(10003, 40006, '1995-12-03', '9999-01-01')`,
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() Config {
	return Config{
		Pool: PoolConfig{MaxConns: 5},
		Query: QueryConfig{
			DefaultTimeoutSeconds:       30,
			ListTablesTimeoutSeconds:    10,
			DescribeTableTimeoutSeconds: 10,
			MaxSQLLength:                100000,
		},
	}
}

// newSQLiteGateway opens a Gateway over a fresh temp-file database. When
// seed is true the employees schema is loaded first.
func newSQLiteGateway(t *testing.T, config Config, seed bool, opts ...Option) *Gateway {
	t.Helper()
	dsn, err := store.BuildDSN(store.ConnectionOptions{
		Driver:   store.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "employees.db"),
	})
	if err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}
	if seed {
		seedDatabase(t, dsn)
	}
	g, err := New(context.Background(), DriverSQLite, dsn, config, testLogger(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(g.Close)
	return g
}

func seedDatabase(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{Driver: store.DriverSQLite, DSN: dsn, MaxConns: 1})
	if err != nil {
		t.Fatalf("open seed store: %v", err)
	}
	defer st.Close()
	conn, err := st.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire seed conn: %v", err)
	}
	defer conn.Release()
	tx, err := conn.Begin(ctx)
	if err != nil {
		t.Fatalf("begin seed tx: %v", err)
	}
	defer tx.Rollback(ctx)
	for _, stmt := range employeesSchema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit seed: %v", err)
	}
}

// mustExecute runs a query that is expected to succeed.
func mustExecute(t *testing.T, g *Gateway, query string, params ...any) *QueryResponse {
	t.Helper()
	resp := g.Execute(context.Background(), QueryRequest{Query: query, Params: params})
	if !resp.Success {
		t.Fatalf("Execute(%q) failed: %s", query, resp.Error)
	}
	return resp
}

// acquireTestPostgres locks a database from the pgflock pool. The test is
// skipped when no locker is running.
func acquireTestPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests skipped in short mode")
	}
	connStr, err := client.Lock(pgflockLockerPort, t.Name(), pgflockPassword)
	if err != nil {
		t.Skipf("pgflock unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Unlock(pgflockLockerPort, pgflockPassword, connStr)
	})
	return connStr
}

// fakeStore counts connection traffic and lets tests script transactions.
type fakeStore struct {
	acquireErr error
	tx         fakeTx
	acquired   atomic.Int64
	released   atomic.Int64
}

func (s *fakeStore) Acquire(ctx context.Context) (store.Conn, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquired.Add(1)
	return &fakeConn{store: s}, nil
}

func (s *fakeStore) Ping(context.Context) error { return s.acquireErr }
func (s *fakeStore) Close()                     {}

func (s *fakeStore) Dialect() store.Dialect {
	d, _ := store.DialectFor(store.DriverSQLite)
	return d
}

type fakeConn struct {
	store    *fakeStore
	released bool
}

func (c *fakeConn) Begin(context.Context) (store.Tx, error) {
	tx := c.store.tx
	return &tx, nil
}

func (c *fakeConn) Release() {
	if !c.released {
		c.released = true
		c.store.released.Add(1)
	}
}

type fakeTx struct {
	query func(ctx context.Context, sql string) (*store.Result, error)
	exec  func(ctx context.Context, sql string) (int64, error)
}

func (t *fakeTx) Query(ctx context.Context, sql string, _ ...any) (*store.Result, error) {
	if t.query == nil {
		return &store.Result{Columns: []string{}, Rows: []map[string]any{}}, nil
	}
	return t.query(ctx, sql)
}

func (t *fakeTx) Exec(ctx context.Context, sql string, _ ...any) (int64, error) {
	if t.exec == nil {
		return 0, nil
	}
	return t.exec(ctx, sql)
}

func (t *fakeTx) Commit(context.Context) error   { return nil }
func (t *fakeTx) Rollback(context.Context) error { return nil }

func newFakeGateway(t *testing.T, st *fakeStore, config Config) *Gateway {
	t.Helper()
	g, err := newGateway(st, config, testLogger())
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	return g
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused (password=hunter2)")
