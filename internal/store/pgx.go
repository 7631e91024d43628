package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxStore struct {
	pool    *pgxpool.Pool
	dialect Dialect
}

func openPgx(ctx context.Context, opts Options) (Store, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = opts.HealthCheckPeriod
	}
	// Simple protocol keeps statements out of the server-side prepared cache.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	dialect := postgresDialect{}
	if opts.ReadOnly {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, dialect.ReadOnlySQL()); err != nil {
				return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &pgxStore{pool: pool, dialect: dialect}, nil
}

func (s *pgxStore) Acquire(ctx context.Context) (Conn, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: c}, nil
}

func (s *pgxStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *pgxStore) Close()                         { s.pool.Close() }
func (s *pgxStore) Dialect() Dialect               { return s.dialect }

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c *pgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (c *pgxConn) Release() {
	if c.conn == nil {
		return
	}
	c.conn.Release()
	c.conn = nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectPgxRows(rows)
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *pgxTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// collectPgxRows reads all rows and converts each value to a JSON-friendly type.
func collectPgxRows(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	dates := make([]bool, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
		dates[i] = fd.DataTypeOID == pgtype.DateOID
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if dates[i] {
				row[col] = convertDateValue(values[i], ConvertValue)
			} else {
				row[col] = ConvertValue(values[i])
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: out}, nil
}
