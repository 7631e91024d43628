package sqlgate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sqlgate/sqlgate/internal/hooks"
	"github.com/sqlgate/sqlgate/internal/mask"
	"github.com/sqlgate/sqlgate/internal/rules"
	"github.com/sqlgate/sqlgate/internal/screen"
	"github.com/sqlgate/sqlgate/internal/store"
)

// Driver names a database backend.
type Driver = store.Driver

const (
	DriverMySQL     = store.DriverMySQL
	DriverPostgres  = store.DriverPostgres
	DriverSQLite    = store.DriverSQLite
	DriverSQLServer = store.DriverSQLServer
)

// ParseDriver maps a driver name or alias to a Driver.
func ParseDriver(s string) (Driver, error) {
	return store.ParseDriver(s)
}

// ErrUnavailable matches every failure to obtain a database connection.
var ErrUnavailable = errors.New("database unavailable")

type unavailableError struct {
	cause string
}

func (e *unavailableError) Error() string        { return "Database connection failed: " + e.cause }
func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(err error) error {
	return &unavailableError{cause: mask.Error(err)}
}

// Gateway is the engine behind Execute and the catalog endpoints.
// All exported methods are safe for concurrent use from multiple goroutines.
type Gateway struct {
	config        Config
	store         store.Store
	semaphore     chan struct{}
	screener      *screen.Screener
	cmdHooks      *hooks.Runner          // command-based hooks (CLI mode)
	goBeforeHooks []BeforeQueryHookEntry // Go function hooks (library mode)
	goAfterHooks  []AfterQueryHookEntry  // Go function hooks (library mode)
	redactor      *rules.Redactor
	prompter      *rules.Prompter
	timeouts      *rules.Timeouts
	openConns     atomic.Int64
	logger        zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	serverHooks *ServerHooksConfig
}

// WithServerHooks passes command-based hook configuration to the Gateway.
// Mutually exclusive with Config.BeforeQueryHooks/AfterQueryHooks (Go hooks).
func WithServerHooks(h ServerHooksConfig) Option {
	return func(o *options) {
		o.serverHooks = &h
	}
}

// New connects to the database and returns a Gateway.
// dsn must include credentials. Panics on invalid config. Returns an error
// for runtime failures (pool creation) and for rule patterns that fail to compile.
func New(ctx context.Context, driver Driver, dsn string, config Config, logger zerolog.Logger, opts ...Option) (*Gateway, error) {
	if dsn == "" {
		panic("sqlgate: dsn must be non-empty")
	}
	config, o := prepare(config, opts)

	st, err := store.Open(ctx, store.Options{
		Driver:            driver,
		DSN:               dsn,
		MaxConns:          config.Pool.MaxConns,
		MinConns:          config.Pool.MinConns,
		MaxConnLifetime:   mustDuration("pool.max_conn_lifetime", config.Pool.MaxConnLifetime),
		MaxConnIdleTime:   mustDuration("pool.max_conn_idle_time", config.Pool.MaxConnIdleTime),
		HealthCheckPeriod: mustDuration("pool.health_check_period", config.Pool.HealthCheckPeriod),
		ReadOnly:          config.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %s", driver, mask.Error(err))
	}

	g, err := build(st, config, o, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return g, nil
}

// newGateway builds a Gateway over an existing store.
func newGateway(st store.Store, config Config, logger zerolog.Logger, opts ...Option) (*Gateway, error) {
	config, o := prepare(config, opts)
	return build(st, config, o, logger)
}

// prepare validates config and fills defaults. Panics on invalid values.
func prepare(config Config, opts []Option) (Config, *options) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if config.Pool.MaxConns <= 0 {
		panic("sqlgate: pool.max_conns must be > 0")
	}
	if config.Pool.MinConns < 0 || config.Pool.MinConns > config.Pool.MaxConns {
		panic("sqlgate: pool.min_conns must be between 0 and pool.max_conns")
	}
	if config.Query.DefaultTimeoutSeconds < 0 {
		panic("sqlgate: query.default_timeout_seconds must be >= 0")
	}
	if config.Query.ListTablesTimeoutSeconds < 0 {
		panic("sqlgate: query.list_tables_timeout_seconds must be >= 0")
	}
	if config.Query.DescribeTableTimeoutSeconds < 0 {
		panic("sqlgate: query.describe_table_timeout_seconds must be >= 0")
	}
	if config.Query.MaxSQLLength < 0 {
		panic("sqlgate: query.max_sql_length must be >= 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("sqlgate: query.max_result_length must be >= 0")
	}
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}

	hasGoHooks := len(config.BeforeQueryHooks) > 0 || len(config.AfterQueryHooks) > 0
	hasCmdHooks := o.serverHooks != nil && (len(o.serverHooks.BeforeQuery) > 0 || len(o.serverHooks.AfterQuery) > 0)
	if hasGoHooks && hasCmdHooks {
		panic("sqlgate: Go hooks (Config.BeforeQueryHooks/AfterQueryHooks) and command hooks (WithServerHooks) are mutually exclusive")
	}
	if (hasGoHooks || hasCmdHooks) && config.DefaultHookTimeoutSeconds <= 0 {
		panic("sqlgate: default_hook_timeout_seconds must be > 0 when hooks are configured")
	}
	for _, entry := range config.BeforeQueryHooks {
		if entry.Hook == nil || entry.Timeout < 0 {
			panic(fmt.Sprintf("sqlgate: before_query hook %q must have a hook and a non-negative timeout", entry.Name))
		}
	}
	for _, entry := range config.AfterQueryHooks {
		if entry.Hook == nil || entry.Timeout < 0 {
			panic(fmt.Sprintf("sqlgate: after_query hook %q must have a hook and a non-negative timeout", entry.Name))
		}
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("sqlgate: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}
	if !hasCmdHooks {
		o.serverHooks = nil
	}
	return config, o
}

func build(st store.Store, config Config, o *options, logger zerolog.Logger) (*Gateway, error) {
	redactions := make([]rules.Redaction, len(config.Sanitization))
	for i, r := range config.Sanitization {
		redactions[i] = rules.Redaction{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	redactor, err := rules.NewRedactor(redactions)
	if err != nil {
		return nil, fmt.Errorf("invalid sanitization: %w", err)
	}

	prompts := make([]rules.Prompt, len(config.ErrorPrompts))
	for i, r := range config.ErrorPrompts {
		prompts[i] = rules.Prompt{Pattern: r.Pattern, Message: r.Message}
	}
	prompter, err := rules.NewPrompter(prompts)
	if err != nil {
		return nil, fmt.Errorf("invalid error_prompts: %w", err)
	}

	timeoutRules := make([]rules.Timeout, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = rules.Timeout{Pattern: r.Pattern, Timeout: seconds(r.TimeoutSeconds)}
	}
	timeouts, err := rules.NewTimeouts(seconds(config.Query.DefaultTimeoutSeconds), timeoutRules)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout_rules: %w", err)
	}

	var cmdHooks *hooks.Runner
	if o.serverHooks != nil {
		entries := func(in []HookEntry) []hooks.Entry {
			out := make([]hooks.Entry, len(in))
			for i, e := range in {
				out[i] = hooks.Entry{
					Name:    e.Name,
					Pattern: e.Pattern,
					Command: e.Command,
					Args:    e.Args,
					Timeout: seconds(e.TimeoutSeconds),
				}
			}
			return out
		}
		cmdHooks, err = hooks.NewRunner(hooks.Config{
			DefaultTimeout: seconds(config.DefaultHookTimeoutSeconds),
			Before:         entries(o.serverHooks.BeforeQuery),
			After:          entries(o.serverHooks.AfterQuery),
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	return &Gateway{
		config:        config,
		store:         st,
		semaphore:     make(chan struct{}, config.Pool.MaxConns),
		screener:      screen.New(config.Denylist),
		cmdHooks:      cmdHooks,
		goBeforeHooks: config.BeforeQueryHooks,
		goAfterHooks:  config.AfterQueryHooks,
		redactor:      redactor,
		prompter:      prompter,
		timeouts:      timeouts,
		logger:        logger,
	}, nil
}

// Close closes the connection pool.
func (g *Gateway) Close() {
	g.store.Close()
}

// Driver returns the backend the Gateway is connected to.
func (g *Gateway) Driver() Driver {
	return g.store.Dialect().Driver()
}

// OpenConns returns the number of connections currently checked out by
// in-flight requests. It is zero whenever the Gateway is idle.
func (g *Gateway) OpenConns() int64 {
	return g.openConns.Load()
}

// Ping checks that the database is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.store.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// acquireSlot blocks until a semaphore slot is free or ctx is done.
func (g *Gateway) acquireSlot(ctx context.Context) (release func(), err error) {
	select {
	case g.semaphore <- struct{}{}:
		return func() { <-g.semaphore }, nil
	case <-ctx.Done():
		return nil, unavailable(fmt.Errorf("all %d connection slots are in use, context cancelled while waiting: %w", cap(g.semaphore), ctx.Err()))
	}
}

// acquireConn checks out a connection and counts it until released.
func (g *Gateway) acquireConn(ctx context.Context) (store.Conn, func(), error) {
	conn, err := g.store.Acquire(ctx)
	if err != nil {
		return nil, nil, unavailable(err)
	}
	g.openConns.Add(1)
	return conn, func() {
		conn.Release()
		g.openConns.Add(-1)
	}, nil
}

// readTx runs fn inside a transaction on its own connection and always
// rolls it back. It follows the same slot, deadline and release discipline
// as Execute.
func (g *Gateway) readTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx store.Tx) error) error {
	releaseSlot, err := g.acquireSlot(ctx)
	if err != nil {
		return err
	}
	defer releaseSlot()

	queryCtx, cancel := withDeadline(ctx, timeout)
	defer cancel()

	conn, releaseConn, err := g.acquireConn(queryCtx)
	if err != nil {
		return err
	}
	defer releaseConn()

	tx, err := conn.Begin(queryCtx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	return fn(queryCtx, tx)
}

// withDeadline applies timeout to ctx; zero means no deadline.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func mustDuration(field, s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("sqlgate: invalid %s %q: %v", field, s, err))
	}
	return d
}
