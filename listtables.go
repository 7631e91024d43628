package sqlgate

import (
	"context"
	"fmt"
	"time"

	"github.com/sqlgate/sqlgate/internal/store"
)

// ListTables returns the tables and views of the current database or schema.
// Does NOT go through the hook/screening/sanitization pipeline.
func (g *Gateway) ListTables(ctx context.Context) (*ListTablesOutput, error) {
	startTime := time.Now()
	dialect := g.store.Dialect()

	var res *store.Result
	err := g.readTx(ctx, seconds(g.config.Query.ListTablesTimeoutSeconds), func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = tx.Query(ctx, dialect.ListTablesSQL())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ListTables query failed: %w", err)
	}

	out := &ListTablesOutput{
		Success: true,
		Tables:  make([]string, 0, len(res.Rows)),
		Details: make([]TableEntry, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		name := asString(row["table_name"])
		out.Tables = append(out.Tables, name)
		out.Details = append(out.Details, TableEntry{Name: name, Type: store.TableType(asString(row["table_type"]))})
	}
	out.Count = len(out.Tables)

	g.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", out.Count).
		Msg("ListTables executed")

	return out, nil
}
