package sqlgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sqlgate/sqlgate/internal/store"
)

// ErrTableNotFound is returned by DescribeTable for an unknown table.
var ErrTableNotFound = errors.New("table not found")

// DescribeTable returns the columns of a table in DESCRIBE form and its row
// count. The name is bound as a parameter in the catalog lookup and quoted as
// an identifier in the count, so it is never interpolated as SQL.
func (g *Gateway) DescribeTable(ctx context.Context, input DescribeTableInput) (*DescribeTableOutput, error) {
	startTime := time.Now()
	table := strings.TrimSpace(input.Table)
	if table == "" {
		return nil, errors.New("DescribeTable: table name is required")
	}
	dialect := g.store.Dialect()

	out := &DescribeTableOutput{Success: true, TableName: table}
	err := g.readTx(ctx, seconds(g.config.Query.DescribeTableTimeoutSeconds), func(ctx context.Context, tx store.Tx) error {
		cols, err := tx.Query(ctx, dialect.DescribeSQL(), table)
		if err != nil {
			return fmt.Errorf("columns query failed: %w", err)
		}
		if len(cols.Rows) == 0 {
			return fmt.Errorf("%w: %q", ErrTableNotFound, table)
		}
		out.Columns = make([]ColumnInfo, 0, len(cols.Rows))
		for _, row := range cols.Rows {
			out.Columns = append(out.Columns, columnInfo(row))
		}

		count, err := tx.Query(ctx, "SELECT COUNT(*) AS count FROM "+dialect.QuoteIdent(table))
		if err != nil {
			return fmt.Errorf("row count query failed: %w", err)
		}
		if len(count.Rows) > 0 {
			out.RowCount = asInt64(count.Rows[0]["count"])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeTable %s: %w", table, err)
	}

	g.logger.Info().
		Str("table", table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(out.Columns)).
		Int64("row_count", out.RowCount).
		Msg("DescribeTable executed")

	return out, nil
}

func columnInfo(row map[string]any) ColumnInfo {
	c := ColumnInfo{
		Field: asString(row["col_field"]),
		Type:  asString(row["col_type"]),
		Null:  strings.ToUpper(asString(row["col_null"])),
		Key:   asString(row["col_key"]),
		Extra: asString(row["col_extra"]),
	}
	if v := row["col_default"]; v != nil {
		s := asString(v)
		c.Default = &s
	}
	return c
}
