package sqlgate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers execute_sql, list_tables, describe_table,
// sample_employees, departments and database_stats on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, g *Gateway) {
	executeTool := mcp.NewTool("execute_sql",
		mcp.WithDescription("Execute one SQL statement. SELECT statements return rows and column names; "+
			"any other statement is committed and returns the number of affected rows. "+
			"Destructive operations such as DROP TABLE or TRUNCATE are refused."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithArray("params",
			mcp.Description("Positional parameters bound to the statement's placeholders"),
		),
	)

	mcpServer.AddTool(executeTool, g.loggedToolHandler("execute_sql", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		var params []any
		if raw, ok := req.GetArguments()["params"]; ok && raw != nil {
			list, ok := raw.([]any)
			if !ok {
				return mcp.NewToolResultError("params must be an array"), nil
			}
			params = mcpParams(ctx, list)
		}
		resp := g.Execute(ctx, QueryRequest{Query: query, Params: params})
		if !resp.Success {
			return mcp.NewToolResultError(resp.Error), nil
		}
		return toolResult(resp, nil)
	}))

	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables and views of the connected database."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(listTablesTool, g.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult(g.ListTables(ctx))
	}))

	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Describe a table: column names, types, nullability, keys, defaults, and the row count."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(describeTableTool, g.loggedToolHandler("describe_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		return toolResult(g.DescribeTable(ctx, DescribeTableInput{Table: table}))
	}))

	sampleTool := mcp.NewTool("sample_employees",
		mcp.WithDescription("Return the first employees by emp_no with their department, title and salary."),
		mcp.WithNumber("limit",
			mcp.Description("Number of rows, 1 to 1000 (default 10)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(sampleTool, g.loggedToolHandler("sample_employees", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", DefaultSampleLimit)
		return toolResult(g.SampleEmployees(ctx, limit))
	}))

	departmentsTool := mcp.NewTool("departments",
		mcp.WithDescription("List every row of the departments table."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(departmentsTool, g.loggedToolHandler("departments", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult(g.Departments(ctx))
	}))

	statsTool := mcp.NewTool("database_stats",
		mcp.WithDescription("Summarize the employees database: employee and department totals, average current salary, and gender distribution."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(statsTool, g.loggedToolHandler("database_stats", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult(g.Stats(ctx))
	}))
}

type exactParamsKey struct{}

// PreserveParamNumbers wraps the MCP HTTP handler so execute_sql binds its
// numeric params exactly as sent. mcp-go decodes tool arguments into
// float64, which rounds integers above 2^53.
func PreserveParamNumbers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			http.Error(w, "read request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if params, ok := exactExecuteParams(body); ok {
			r = r.WithContext(context.WithValue(r.Context(), exactParamsKey{}, params))
		}
		next.ServeHTTP(w, r)
	})
}

// exactExecuteParams extracts the params of an execute_sql tools/call
// message, keeping numbers as json.Number.
func exactExecuteParams(body []byte) ([]any, bool) {
	var msg struct {
		Method string `json:"method"`
		Params struct {
			Name      string `json:"name"`
			Arguments struct {
				Params []any `json:"params"`
			} `json:"arguments"`
		} `json:"params"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, false
	}
	if msg.Method != string(mcp.MethodToolsCall) || msg.Params.Name != "execute_sql" || msg.Params.Arguments.Params == nil {
		return nil, false
	}
	return msg.Params.Arguments.Params, true
}

// mcpParams prefers the exact params captured by PreserveParamNumbers and
// otherwise restores integer types lost to float64 decoding.
func mcpParams(ctx context.Context, decoded []any) []any {
	if exact, ok := ctx.Value(exactParamsKey{}).([]any); ok && len(exact) == len(decoded) {
		return exact
	}
	return wholeFloatsToInt(decoded)
}

// toolResult renders an endpoint's output as JSON text, or its error as a
// tool error. Tool handlers never return a Go error.
func toolResult[T any](out T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// loggedToolHandler wraps a tool handler to log request and response sizes.
func (g *Gateway) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := handler(ctx, req)
		g.logger.Info().
			Str("tool", tool).
			Int("request_bytes", requestLength(req)).
			Int("response_bytes", resultLength(result)).
			Bool("is_error", result != nil && result.IsError).
			Msg("tool call")
		return result, err
	}
}

func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
