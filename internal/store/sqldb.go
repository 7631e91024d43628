package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// sqlStore serves the database/sql backends. Each Acquire pins one pooled
// *sql.Conn so that session settings and the transaction share a connection.
type sqlStore struct {
	db      *sql.DB
	dialect Dialect
	setup   string
}

func openSQL(_ context.Context, opts Options) (Store, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(string(opts.Driver), opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		db.SetMaxIdleConns(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(opts.MaxConnLifetime)
	}
	if opts.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.MaxConnIdleTime)
	}

	s := &sqlStore{db: db, dialect: dialect}
	if opts.ReadOnly {
		s.setup = dialect.ReadOnlySQL()
	}
	return s, nil
}

func (s *sqlStore) Acquire(ctx context.Context) (Conn, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if s.setup != "" {
		if _, err := c.ExecContext(ctx, s.setup); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to apply session setting %q: %w", s.setup, err)
		}
	}
	return &sqlConn{conn: c}, nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlStore) Close()                         { s.db.Close() }
func (s *sqlStore) Dialect() Dialect               { return s.dialect }

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (c *sqlConn) Release() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSQLRows(rows)
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *sqlTx) Commit(context.Context) error { return t.tx.Commit() }

func (t *sqlTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func collectSQLRows(rows *sql.Rows) (*Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	dates := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			dates[i] = isDateType(ct.DatabaseTypeName())
		}
	}

	out := make([]map[string]any, 0)
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if dates[i] {
				row[col] = convertDateValue(values[i], convertSQLValue)
			} else {
				row[col] = convertSQLValue(values[i])
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: out}, nil
}
