// Package sqlgate executes caller-supplied SQL against a relational database
// behind a safety screen, and exposes the result as HTTP endpoints and MCP tools.
//
// Every statement passes through the same pipeline: request validation,
// before_query hooks, the denylist screen, a multi-statement check, execution
// on a connection checked out for that request alone, after_query hooks,
// commit (writes only), sanitization and result truncation. A statement whose
// trimmed text starts with SELECT is a read and its transaction is rolled
// back; anything else is a write and is committed.
//
// The screen is a substring denylist (DROP TABLE, TRUNCATE, DELETE FROM
// employees, ...). It is not a security boundary: it blocks the listed phrases
// even inside comments and string literals, and lets through anything spelled
// differently. Use a database account with the right privileges, or
// Config.ReadOnly, for real isolation.
//
// MySQL, PostgreSQL (pgx), SQLite and SQL Server backends are supported.
//
// # Library Usage
//
//	g, err := sqlgate.New(ctx, sqlgate.DriverMySQL, dsn, sqlgate.Config{
//		Pool: sqlgate.PoolConfig{MaxConns: 10},
//		Query: sqlgate.QueryConfig{
//			DefaultTimeoutSeconds:       30,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer g.Close()
//
//	resp := g.Execute(ctx, sqlgate.QueryRequest{Query: "SELECT * FROM employees LIMIT 5"})
//
//	// Or register as MCP tools
//	sqlgate.RegisterMCPTools(mcpServer, g)
//
// # Hooks
//
// Implement [BeforeQueryHook] and [AfterQueryHook] for Go hooks. A before hook
// may rewrite the query; the rewritten text is screened again. After hooks
// run before commit, so rejecting a write rolls it back:
//
//	type MaxRows struct{ Limit int64 }
//
//	func (h MaxRows) Run(ctx context.Context, resp *sqlgate.QueryResponse) (*sqlgate.QueryResponse, error) {
//		if resp.RowsAffected != nil && *resp.RowsAffected > h.Limit {
//			return nil, errors.New("too many rows")
//		}
//		return resp, nil
//	}
//
// In server mode the same stages run external commands instead; see
// [ServerHooksConfig].
package sqlgate
