// Package configure implements the interactive configuration wizard behind
// `sqlgate configure`.
package configure

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sqlgate/sqlgate"
	"github.com/sqlgate/sqlgate/internal/config"
	"github.com/sqlgate/sqlgate/internal/screen"
)

// Run runs the wizard on stdin/stderr. The existing file at configPath, if
// any, supplies the current values; otherwise config.Default does.
func Run(configPath string) error {
	return run(configPath, os.Stdin, os.Stderr)
}

func run(configPath string, input io.Reader, output io.Writer) error {
	cfg, err := config.Load(configPath)
	isNew := errors.Is(err, config.ErrNotFound)
	switch {
	case isNew:
		cfg = config.Default()
	case err != nil:
		return err
	}

	p := &prompter{scanner: bufio.NewScanner(input), output: output, isNew: isNew}

	fmt.Fprintf(output, "sqlgate configuration wizard\n")
	fmt.Fprintf(output, "Config file: %s\n\n", configPath)

	c := &cfg.Connection
	p.section("Connection")
	c.Driver = ask(p, "connection.driver", "", c.Driver, oneOf(driverNames()))
	c.Host = ask(p, "connection.host", "", c.Host, text)
	c.Port = ask(p, "connection.port", "0 = driver default", c.Port, atLeast(0))
	c.User = ask(p, "connection.user", "", c.User, text)
	c.DBName = ask(p, "connection.dbname", "file path for sqlite", c.DBName, text)
	c.SSLMode = ask(p, "connection.sslmode", "postgres only", c.SSLMode, oneOf(sslModes))

	s := &cfg.Server
	p.section("Server")
	s.Host = ask(p, "server.host", "", s.Host, text)
	s.Port = ask(p, "server.port", "must be > 0", s.Port, atLeast(1))
	s.MCPEnabled = ask(p, "server.mcp_enabled", "", s.MCPEnabled, boolean)
	s.ShutdownTimeoutSeconds = ask(p, "server.shutdown_timeout_seconds", "seconds", s.ShutdownTimeoutSeconds, atLeast(0))

	l := &cfg.Logging
	p.section("Logging")
	l.Level = ask(p, "logging.level", "", l.Level, oneOf(logLevels))
	l.Format = ask(p, "logging.format", "", l.Format, oneOf(logFormats))
	l.Output = ask(p, "logging.output", "stdout, stderr, or file path", l.Output, text)

	pool := &cfg.Pool
	p.section("Pool")
	pool.MaxConns = ask(p, "pool.max_conns", "must be > 0", pool.MaxConns, atLeast(1))
	pool.MinConns = ask(p, "pool.min_conns", "must be >= 0", pool.MinConns, atLeast(0))
	pool.MaxConnLifetime = ask(p, "pool.max_conn_lifetime", "Go duration: e.g. 1h, 30m", pool.MaxConnLifetime, duration)
	pool.MaxConnIdleTime = ask(p, "pool.max_conn_idle_time", "Go duration: e.g. 1h, 30m", pool.MaxConnIdleTime, duration)
	pool.HealthCheckPeriod = ask(p, "pool.health_check_period", "Go duration: e.g. 1m, 30s", pool.HealthCheckPeriod, duration)

	q := &cfg.Query
	p.section("Query")
	q.DefaultTimeoutSeconds = ask(p, "query.default_timeout_seconds", "seconds, 0 = none", q.DefaultTimeoutSeconds, atLeast(0))
	q.ListTablesTimeoutSeconds = ask(p, "query.list_tables_timeout_seconds", "seconds, 0 = none", q.ListTablesTimeoutSeconds, atLeast(0))
	q.DescribeTableTimeoutSeconds = ask(p, "query.describe_table_timeout_seconds", "seconds, 0 = none", q.DescribeTableTimeoutSeconds, atLeast(0))
	q.MaxSQLLength = ask(p, "query.max_sql_length", "bytes, must be > 0", q.MaxSQLLength, atLeast(1))
	q.MaxResultLength = ask(p, "query.max_result_length", "characters, 0 = unlimited", q.MaxResultLength, atLeast(0))

	p.section("General")
	cfg.ReadOnly = ask(p, "read_only", "", cfg.ReadOnly, boolean)
	cfg.DefaultHookTimeoutSeconds = ask(p, "default_hook_timeout_seconds", "seconds, must be > 0 when hooks are configured", cfg.DefaultHookTimeoutSeconds, atLeast(0))

	p.section("Denylist")
	if len(cfg.Denylist) == 0 {
		fmt.Fprintf(output, "  (empty: built-in list %s)\n", strings.Join(screen.Denylist, ", "))
	}
	cfg.Denylist = editList(p, "denylist phrase", cfg.Denylist,
		func(s string) string { return fmt.Sprintf("%q", s) },
		func(p *prompter) string { return field(p, "phrase", text) })

	p.section("Timeout Rules")
	q.TimeoutRules = editList(p, "timeout rule", q.TimeoutRules,
		func(r sqlgate.TimeoutRule) string {
			return fmt.Sprintf("pattern=%q timeout_seconds=%d", r.Pattern, r.TimeoutSeconds)
		},
		func(p *prompter) sqlgate.TimeoutRule {
			return sqlgate.TimeoutRule{
				Pattern:        field(p, "pattern (regex)", pattern),
				TimeoutSeconds: field(p, "timeout_seconds (must be > 0)", atLeast(1)),
			}
		})

	p.section("Error Prompts")
	cfg.ErrorPrompts = editList(p, "error prompt", cfg.ErrorPrompts,
		func(r sqlgate.ErrorPromptRule) string {
			return fmt.Sprintf("pattern=%q message=%q", r.Pattern, r.Message)
		},
		func(p *prompter) sqlgate.ErrorPromptRule {
			return sqlgate.ErrorPromptRule{
				Pattern: field(p, "pattern (regex)", pattern),
				Message: field(p, "message", text),
			}
		})

	p.section("Sanitization Rules")
	cfg.Sanitization = editList(p, "sanitization rule", cfg.Sanitization,
		func(r sqlgate.SanitizationRule) string {
			return fmt.Sprintf("pattern=%q replacement=%q description=%q", r.Pattern, r.Replacement, r.Description)
		},
		func(p *prompter) sqlgate.SanitizationRule {
			return sqlgate.SanitizationRule{
				Pattern:     field(p, "pattern (regex)", pattern),
				Replacement: field(p, "replacement", text),
				Description: field(p, "description", text),
			}
		})

	p.section("Server Hooks: Before Query")
	cfg.ServerHooks.BeforeQuery = editList(p, "before_query hook", cfg.ServerHooks.BeforeQuery, showHook, newHook)

	p.section("Server Hooks: After Query")
	cfg.ServerHooks.AfterQuery = editList(p, "after_query hook", cfg.ServerHooks.AfterQuery, showHook, newHook)

	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(output, "\nConfiguration saved to %s\n", configPath)
	return nil
}

var (
	sslModes   = []string{"", "disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

func driverNames() []string {
	return []string{
		string(sqlgate.DriverMySQL),
		string(sqlgate.DriverPostgres),
		string(sqlgate.DriverSQLite),
		string(sqlgate.DriverSQLServer),
	}
}

func showHook(e sqlgate.HookEntry) string {
	return fmt.Sprintf("name=%q pattern=%q command=%q args=%v timeout_seconds=%d",
		e.Name, e.Pattern, e.Command, e.Args, e.TimeoutSeconds)
}

func newHook(p *prompter) sqlgate.HookEntry {
	e := sqlgate.HookEntry{
		Name:    field(p, "name", text),
		Pattern: field(p, "pattern (regex, empty = every query)", pattern),
		Command: field(p, "command", text),
	}
	if args := field(p, "args (comma-separated)", text); args != "" {
		for _, a := range strings.Split(args, ",") {
			e.Args = append(e.Args, strings.TrimSpace(a))
		}
	}
	e.TimeoutSeconds = field(p, "timeout_seconds (0 = default)", atLeast(0))
	return e
}

// prompter reads answers line by line and writes prompts to output.
type prompter struct {
	scanner *bufio.Scanner
	output  io.Writer
	isNew   bool
	eof     bool
}

func (p *prompter) readLine() string {
	if p.scanner.Scan() {
		return strings.TrimSpace(p.scanner.Text())
	}
	p.eof = true
	return ""
}

func (p *prompter) valueLabel() string {
	if p.isNew {
		return "default"
	}
	return "current"
}

func (p *prompter) section(name string) {
	fmt.Fprintf(p.output, "\n=== %s ===\n", name)
}

// parser converts one answer. An error re-asks the question.
type parser[T any] func(string) (T, error)

// ask prompts for a value; an empty answer keeps current.
func ask[T any](p *prompter, field, hint string, current T, parse parser[T]) T {
	label := field
	if hint != "" {
		label = fmt.Sprintf("%s [%s]", field, hint)
	}
	for {
		fmt.Fprintf(p.output, "%s (%s: %s): ", label, p.valueLabel(), show(current))
		input := p.readLine()
		if input == "" {
			return current
		}
		v, err := parse(input)
		if err != nil {
			fmt.Fprintf(p.output, "  %v, try again.\n", err)
			continue
		}
		return v
	}
}

// field prompts for a value of a new list entry. An empty answer is parsed
// like any other, so required fields reject it.
func field[T any](p *prompter, name string, parse parser[T]) T {
	for {
		fmt.Fprintf(p.output, "  %s: ", name)
		v, err := parse(p.readLine())
		if err != nil {
			if p.eof {
				return v
			}
			fmt.Fprintf(p.output, "  %v, try again.\n", err)
			continue
		}
		return v
	}
}

func show(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}

func text(s string) (string, error) { return s, nil }

func pattern(s string) (string, error) {
	if _, err := regexp.Compile(s); err != nil {
		return "", fmt.Errorf("invalid regex %q: %v", s, err)
	}
	return s, nil
}

func duration(s string) (string, error) {
	if _, err := time.ParseDuration(s); err != nil {
		return "", fmt.Errorf("invalid Go duration %q", s)
	}
	return s, nil
}

func boolean(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q, use true/false/yes/no", s)
}

func atLeast(lo int) parser[int] {
	return func(s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		if v < lo {
			return 0, fmt.Errorf("value must be >= %d", lo)
		}
		return v, nil
	}
}

func oneOf(allowed []string) parser[string] {
	return func(s string) (string, error) {
		for _, v := range allowed {
			if s == v {
				return s, nil
			}
		}
		return "", fmt.Errorf("invalid value %q, must be one of: %s", s, strings.Join(allowed, ", "))
	}
}

// editList shows items and loops on add/remove until the user continues.
func editList[T any](p *prompter, label string, items []T, describe func(T) string, add func(*prompter) T) []T {
	for {
		if len(items) == 0 {
			fmt.Fprintf(p.output, "  (no entries)\n")
		}
		for i, it := range items {
			fmt.Fprintf(p.output, "  [%d] %s\n", i, describe(it))
		}
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		switch strings.ToLower(p.readLine()) {
		case "a":
			items = append(items, add(p))
		case "r":
			items = removeByIndex(p, label, items)
		case "c", "":
			return items
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func removeByIndex[T any](p *prompter, label string, items []T) []T {
	if len(items) == 0 {
		fmt.Fprintf(p.output, "  No %s entries to remove.\n", label)
		return items
	}
	fmt.Fprintf(p.output, "  Index to remove: ")
	idx, err := strconv.Atoi(p.readLine())
	if err != nil || idx < 0 || idx >= len(items) {
		fmt.Fprintf(p.output, "  Invalid index.\n")
		return items
	}
	return append(items[:idx], items[idx+1:]...)
}
