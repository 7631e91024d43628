package store

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/sqlgate/sqlgate/internal/statement"
)

// Dialect carries the per-backend SQL the gateway needs for its catalog
// endpoints. Every catalog query returns lower-case aliased columns so that
// callers can read rows by name regardless of the backend.
type Dialect interface {
	Driver() Driver
	// Flavor selects the lexical rules for multi-statement detection.
	Flavor() statement.Flavor
	QuoteIdent(name string) string
	// Placeholder returns the n-th (1-based) positional bind marker.
	Placeholder(n int) string
	// Limit returns a clause limiting the rows of an ORDER BY query to the
	// value bound at placeholder n.
	Limit(n int) string
	// ListTablesSQL returns columns table_name, table_type.
	ListTablesSQL() string
	// DescribeSQL takes the table name at placeholder 1 and returns columns
	// col_field, col_type, col_null, col_key, col_default, col_extra.
	DescribeSQL() string
	// ReadOnlySQL is run on each new session when read-only mode is on.
	// Empty means the backend has no session-level switch.
	ReadOnlySQL() string
}

// DialectFor returns the Dialect of a driver.
func DialectFor(d Driver) (Dialect, error) {
	switch d {
	case DriverMySQL:
		return mysqlDialect{}, nil
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	case DriverSQLServer:
		return sqlserverDialect{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, d)
}

type mysqlDialect struct{}

func (mysqlDialect) Driver() Driver           { return DriverMySQL }
func (mysqlDialect) Flavor() statement.Flavor { return statement.MySQL }
func (mysqlDialect) Placeholder(int) string   { return "?" }
func (mysqlDialect) Limit(n int) string       { return "LIMIT ?" }
func (mysqlDialect) ReadOnlySQL() string      { return "SET SESSION TRANSACTION READ ONLY" }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) ListTablesSQL() string {
	return `SELECT table_name AS table_name, table_type AS table_type
FROM information_schema.tables
WHERE table_schema = DATABASE()
ORDER BY table_name`
}

func (mysqlDialect) DescribeSQL() string {
	return `SELECT column_name AS col_field, column_type AS col_type, is_nullable AS col_null,
       column_key AS col_key, column_default AS col_default, extra AS col_extra
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`
}

type postgresDialect struct{}

func (postgresDialect) Driver() Driver           { return DriverPostgres }
func (postgresDialect) Flavor() statement.Flavor { return statement.Postgres }
func (postgresDialect) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}
func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) Limit(n int) string       { return fmt.Sprintf("LIMIT $%d", n) }
func (postgresDialect) ReadOnlySQL() string      { return "SET default_transaction_read_only = on" }

func (postgresDialect) ListTablesSQL() string {
	return `SELECT table_name AS table_name, table_type AS table_type
FROM information_schema.tables
WHERE table_schema = current_schema()
ORDER BY table_name`
}

func (postgresDialect) DescribeSQL() string {
	return `SELECT
    c.column_name AS col_field,
    c.data_type AS col_type,
    c.is_nullable AS col_null,
    CASE WHEN pk.column_name IS NOT NULL THEN 'PRI' ELSE '' END AS col_key,
    c.column_default AS col_default,
    '' AS col_extra
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
        AND tc.table_schema = current_schema()
        AND tc.table_name = $1
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = current_schema()
    AND c.table_name = $1
ORDER BY c.ordinal_position`
}

type sqliteDialect struct{}

func (sqliteDialect) Driver() Driver           { return DriverSQLite }
func (sqliteDialect) Flavor() statement.Flavor { return statement.Standard }
func (sqliteDialect) Placeholder(int) string   { return "?" }
func (sqliteDialect) Limit(int) string         { return "LIMIT ?" }
func (sqliteDialect) ReadOnlySQL() string      { return "PRAGMA query_only = ON" }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) ListTablesSQL() string {
	return `SELECT name AS table_name, type AS table_type
FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`
}

func (sqliteDialect) DescribeSQL() string {
	return `SELECT name AS col_field, type AS col_type,
       CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END AS col_null,
       CASE WHEN pk > 0 THEN 'PRI' ELSE '' END AS col_key,
       dflt_value AS col_default, '' AS col_extra
FROM pragma_table_info(?)
ORDER BY cid`
}

type sqlserverDialect struct{}

func (sqlserverDialect) Driver() Driver           { return DriverSQLServer }
func (sqlserverDialect) Flavor() statement.Flavor { return statement.Standard }
func (sqlserverDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (sqlserverDialect) ReadOnlySQL() string      { return "" }

func (sqlserverDialect) Limit(n int) string {
	return fmt.Sprintf("OFFSET 0 ROWS FETCH NEXT @p%d ROWS ONLY", n)
}

func (sqlserverDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (sqlserverDialect) ListTablesSQL() string {
	return `SELECT TABLE_NAME AS table_name, TABLE_TYPE AS table_type
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = SCHEMA_NAME()
ORDER BY TABLE_NAME`
}

func (sqlserverDialect) DescribeSQL() string {
	return `SELECT
    c.COLUMN_NAME AS col_field,
    c.DATA_TYPE AS col_type,
    c.IS_NULLABLE AS col_null,
    CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRI' ELSE '' END AS col_key,
    c.COLUMN_DEFAULT AS col_default,
    CASE WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1
         THEN 'identity' ELSE '' END AS col_extra
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
    SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
        ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
) pk ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA AND pk.TABLE_NAME = c.TABLE_NAME AND pk.COLUMN_NAME = c.COLUMN_NAME
WHERE c.TABLE_SCHEMA = SCHEMA_NAME() AND c.TABLE_NAME = @p1
ORDER BY c.ORDINAL_POSITION`
}

// TableType normalizes catalog table types to "table" or "view".
func TableType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "VIEW", "SYSTEM VIEW":
		return "view"
	case "BASE TABLE", "TABLE":
		return "table"
	}
	return strings.ToLower(raw)
}
