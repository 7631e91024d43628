package sqlgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sqlgate/sqlgate/internal/mask"
	"github.com/sqlgate/sqlgate/internal/statement"
	"github.com/sqlgate/sqlgate/internal/store"
)

// Execute screens and runs one SQL statement and returns a normalized
// response. It never returns a Go error and never panics: every failure,
// including a recovered panic, is reported in QueryResponse.Error.
//
// A query whose trimmed text starts with SELECT (case-insensitive) is a read:
// its rows are returned and its transaction is rolled back. Anything else is
// a write: the affected-row count is returned and the transaction committed.
func (g *Gateway) Execute(ctx context.Context, req QueryRequest) (resp *QueryResponse) {
	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Str("sql", truncateForLog(req.Query, 200)).Msg("query panicked")
			resp = g.respondError(OutcomeFailed, fmt.Errorf("Server error: %v", r))
		}
	}()

	query := req.Query
	params := bindParams(req.Params)

	// 1. Validate request (before any processing: hooks, screening)
	if strings.TrimSpace(query) == "" {
		return g.respondError(OutcomeFailed, errors.New("query must not be empty"))
	}
	if len(query) > g.config.Query.MaxSQLLength {
		return g.respondError(OutcomeFailed, fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(query), g.config.Query.MaxSQLLength))
	}

	// 2. Acquire semaphore (respects context cancellation to prevent deadlock)
	releaseSlot, err := g.acquireSlot(ctx)
	if err != nil {
		return g.respondError(OutcomeUnavailable, err)
	}
	defer releaseSlot()

	// 3. BeforeQuery hooks (middleware chain, may rewrite or reject)
	query, beforeHooks, err := g.runBeforeHooks(ctx, query, params)
	if err != nil {
		return g.respondError(OutcomeDenied, err)
	}

	// 4. Screen the (possibly rewritten) query, then refuse stacked statements
	if verdict := g.screener.Check(query); !verdict.Allowed {
		return g.respondError(OutcomeDenied, errors.New(verdict.Reason))
	}
	if err := statement.CheckSingle(query, g.store.Dialect().Flavor()); err != nil {
		return g.respondError(OutcomeDenied, err)
	}

	// 5. Determine timeout
	timeout, timeoutRule := g.timeouts.For(query)
	queryCtx, cancel := withDeadline(ctx, timeout)
	defer cancel()

	// 6. Acquire connection; released on every path below
	conn, releaseConn, err := g.acquireConn(queryCtx)
	if err != nil {
		return g.respondError(OutcomeUnavailable, err)
	}
	defer releaseConn()

	tx, err := conn.Begin(queryCtx)
	if err != nil {
		return g.respondError(OutcomeFailed, sqlError(err))
	}
	defer tx.Rollback(ctx) // parent ctx: queryCtx may already be cancelled

	// 7. Classify and execute
	isRead := isReadQuery(query)
	var result *QueryResponse
	if isRead {
		rows, err := tx.Query(queryCtx, query, params...)
		if err != nil {
			return g.respondError(OutcomeFailed, sqlError(err))
		}
		tx.Rollback(ctx)
		result = &QueryResponse{
			Kind:    OutcomeRead,
			Success: true,
			Data:    rows.Rows,
			Columns: rows.Columns,
			Message: fmt.Sprintf("Query successful, returned %d records", len(rows.Rows)),
		}
	} else {
		n, err := tx.Exec(queryCtx, query, params...)
		if err != nil {
			return g.respondError(OutcomeFailed, sqlError(err))
		}
		result = &QueryResponse{
			Kind:         OutcomeWrite,
			Success:      true,
			RowsAffected: &n,
			Message:      fmt.Sprintf("Operation successful, affected %d rows", n),
		}
	}

	// 8. AfterQuery hooks run before commit so that they can veto a write
	result, afterHooks, err := g.runAfterHooks(ctx, query, result)
	if err != nil {
		return g.respondError(OutcomeDenied, err)
	}

	// 9. Commit writes (queryCtx: the whole pipeline stays within the timeout)
	if !isRead {
		if err := tx.Commit(queryCtx); err != nil {
			return g.respondError(OutcomeFailed, sqlError(err))
		}
	}

	// 10. Sanitize and bound read results
	sanitized := false
	if result.Kind == OutcomeRead {
		sanitized = g.redactor.Enabled()
		g.redactor.Rows(result.Data)
		if truncated, ok := g.truncateIfNeeded(result); ok {
			return g.respondError(OutcomeFailed, errors.New(truncated))
		}
	}

	// 11. Log successful query execution with pipeline details
	logEvent := g.logger.Info().
		Str("sql", truncateForLog(query, 200)).
		Str("kind", result.Kind.String()).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(result.Data))
	if result.RowsAffected != nil {
		logEvent = logEvent.Int64("rows_affected", *result.RowsAffected)
	}
	if len(beforeHooks) > 0 {
		logEvent = logEvent.Strs("before_hooks", beforeHooks)
	}
	if len(afterHooks) > 0 {
		logEvent = logEvent.Strs("after_hooks", afterHooks)
	}
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if sanitized {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return result
}

// isReadQuery reports whether sql takes the read path: its trimmed text
// starts with SELECT. WITH, SHOW and EXPLAIN are writes by this rule.
func isReadQuery(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT")
}

// driverError marks an error reported by the database.
type driverError struct {
	err error
}

func (e *driverError) Error() string { return "SQL execution error: " + mask.Error(e.err) }
func (e *driverError) Unwrap() error { return e.err }

func sqlError(err error) error {
	return &driverError{err: err}
}

func (g *Gateway) runBeforeHooks(ctx context.Context, query string, params []any) (string, []string, error) {
	if g.cmdHooks.HasBefore() {
		return g.cmdHooks.Before(ctx, query, params)
	}
	var ran []string
	for _, entry := range g.goBeforeHooks {
		timeout := entry.Timeout
		if timeout == 0 {
			timeout = seconds(g.config.DefaultHookTimeoutSeconds)
		}
		hookCtx, cancel := context.WithTimeout(ctx, timeout)
		modified, err := entry.Hook.Run(hookCtx, query)
		cancel()
		ran = append(ran, entry.Name)
		if err != nil {
			if errors.Is(hookCtx.Err(), context.DeadlineExceeded) {
				return "", ran, fmt.Errorf("before_query hook error: hook timed out (name: %s, timeout: %s)", entry.Name, timeout)
			}
			return "", ran, fmt.Errorf("before_query hook error: hook rejected query (name: %s): %w", entry.Name, err)
		}
		query = modified
	}
	return query, ran, nil
}

func (g *Gateway) runAfterHooks(ctx context.Context, query string, result *QueryResponse) (*QueryResponse, []string, error) {
	if g.cmdHooks.HasAfter() {
		return g.runCmdAfterHooks(ctx, query, result)
	}
	var ran []string
	for _, entry := range g.goAfterHooks {
		timeout := entry.Timeout
		if timeout == 0 {
			timeout = seconds(g.config.DefaultHookTimeoutSeconds)
		}
		hookCtx, cancel := context.WithTimeout(ctx, timeout)
		modified, err := entry.Hook.Run(hookCtx, result)
		cancel()
		ran = append(ran, entry.Name)
		if err != nil {
			if errors.Is(hookCtx.Err(), context.DeadlineExceeded) {
				return nil, ran, fmt.Errorf("after_query hook error: hook timed out (name: %s, timeout: %s)", entry.Name, timeout)
			}
			return nil, ran, fmt.Errorf("after_query hook error: hook rejected result (name: %s): %w", entry.Name, err)
		}
		if modified != nil {
			modified.Kind = result.Kind
			result = modified
		}
	}
	return result, ran, nil
}

// runCmdAfterHooks passes the response through command hooks as JSON. The
// outcome kind cannot be changed by a hook.
func (g *Gateway) runCmdAfterHooks(ctx context.Context, query string, result *QueryResponse) (*QueryResponse, []string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, nil, err
	}
	modified, ran, err := g.cmdHooks.After(ctx, query, raw)
	if err != nil {
		return nil, ran, err
	}
	if len(ran) == 0 {
		return result, nil, nil
	}
	out := &QueryResponse{}
	dec := json.NewDecoder(strings.NewReader(string(modified)))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return nil, ran, fmt.Errorf("after_query hook returned an invalid result: %w", err)
	}
	out.Kind = result.Kind
	return out, ran, nil
}

// respondError converts an error into a failed response. Matching error
// prompts are appended to the message.
func (g *Gateway) respondError(kind OutcomeKind, err error) *QueryResponse {
	msg, patterns := g.prompter.Annotate(err.Error())

	logEvent := g.logger.Error()
	if kind == OutcomeDenied {
		logEvent = g.logger.Warn()
	}
	logEvent = logEvent.Str("kind", kind.String()).Str("error", mask.Error(err))
	var de *driverError
	if errors.As(err, &de) {
		if code := store.ErrorCode(de.err); code != "" {
			logEvent = logEvent.Str("error_code", code)
		}
	}
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	return &QueryResponse{Kind: kind, Error: msg}
}

// truncateIfNeeded reports whether the rows exceed MaxResultLength (in
// characters, as JSON) and if so returns the truncated text.
func (g *Gateway) truncateIfNeeded(resp *QueryResponse) (string, bool) {
	limit := g.config.Query.MaxResultLength
	if limit <= 0 {
		return "", false
	}
	b, err := json.Marshal(resp.Data)
	if err != nil || utf8.RuneCount(b) <= limit {
		return "", false
	}
	runes := []rune(string(b))
	return string(runes[:limit]) + "...[truncated] Result is too long! Add limits in your query!", true
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...[truncated]"
}
