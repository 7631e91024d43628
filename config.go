package sqlgate

import (
	"context"
	"time"
)

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig         `json:"pool" yaml:"pool"`
	Query        QueryConfig        `json:"query" yaml:"query"`
	ErrorPrompts []ErrorPromptRule  `json:"error_prompts" yaml:"error_prompts"`
	Sanitization []SanitizationRule `json:"sanitization" yaml:"sanitization"`
	// Denylist replaces the built-in list of forbidden phrases when non-empty.
	Denylist                  []string `json:"denylist" yaml:"denylist"`
	ReadOnly                  bool     `json:"read_only" yaml:"read_only"`
	DefaultHookTimeoutSeconds int      `json:"default_hook_timeout_seconds" yaml:"default_hook_timeout_seconds"`

	// Library mode: Go function hooks (not serializable).
	// Mutually exclusive with ServerConfig.ServerHooks.
	BeforeQueryHooks []BeforeQueryHookEntry `json:"-" yaml:"-"`
	AfterQueryHooks  []AfterQueryHookEntry  `json:"-" yaml:"-"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config      `yaml:",inline"`
	Connection  ConnectionConfig  `json:"connection" yaml:"connection"`
	Server      ServerSettings    `json:"server" yaml:"server"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	ServerHooks ServerHooksConfig `json:"server_hooks" yaml:"server_hooks"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
// The password is never stored here; see internal/credentials.
type ConnectionConfig struct {
	Driver  string `json:"driver" yaml:"driver"` // mysql, postgres, sqlite, sqlserver
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	User    string `json:"user" yaml:"user"`
	DBName  string `json:"dbname" yaml:"dbname"` // file path for sqlite
	SSLMode string `json:"sslmode" yaml:"sslmode"`
	// DSN overrides every other field except Driver.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// PoolConfig holds connection pool settings. Durations use time.ParseDuration syntax.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns" yaml:"max_conns"`
	MinConns          int    `json:"min_conns" yaml:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time" yaml:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period" yaml:"health_check_period"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Host                   string   `json:"host" yaml:"host"`
	Port                   int      `json:"port" yaml:"port"`
	AllowedOrigins         []string `json:"allowed_origins" yaml:"allowed_origins"` // empty means "*"
	MCPEnabled             bool     `json:"mcp_enabled" yaml:"mcp_enabled"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
	Output string `json:"output" yaml:"output"` // stdout, stderr, or file path
}

// QueryConfig holds query execution settings. A zero timeout means no deadline.
type QueryConfig struct {
	DefaultTimeoutSeconds       int           `json:"default_timeout_seconds" yaml:"default_timeout_seconds"`
	ListTablesTimeoutSeconds    int           `json:"list_tables_timeout_seconds" yaml:"list_tables_timeout_seconds"`
	DescribeTableTimeoutSeconds int           `json:"describe_table_timeout_seconds" yaml:"describe_table_timeout_seconds"`
	MaxSQLLength                int           `json:"max_sql_length" yaml:"max_sql_length"`
	MaxResultLength             int           `json:"max_result_length" yaml:"max_result_length"` // 0 means unlimited
	TimeoutRules                []TimeoutRule `json:"timeout_rules" yaml:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern" yaml:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ErrorPromptRule maps an error message pattern to a guidance message.
type ErrorPromptRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Message string `json:"message" yaml:"message"`
}

// SanitizationRule defines a regex-based replacement over result values.
type SanitizationRule struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
	Description string `json:"description" yaml:"description"`
}

// ServerHooksConfig holds command-based hook configuration for CLI mode.
type ServerHooksConfig struct {
	BeforeQuery []HookEntry `json:"before_query" yaml:"before_query"`
	AfterQuery  []HookEntry `json:"after_query" yaml:"after_query"`
}

// HookEntry defines a single command-based hook.
type HookEntry struct {
	Name           string   `json:"name" yaml:"name"`
	Pattern        string   `json:"pattern" yaml:"pattern"`
	Command        string   `json:"command" yaml:"command"`
	Args           []string `json:"args" yaml:"args"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// BeforeQueryHook can inspect and rewrite a query before screening. A
// returned error rejects the query.
type BeforeQueryHook interface {
	Run(ctx context.Context, query string) (string, error)
}

// AfterQueryHook can inspect and replace a successful response. For writes
// it runs before commit, so a returned error rolls the write back.
type AfterQueryHook interface {
	Run(ctx context.Context, resp *QueryResponse) (*QueryResponse, error)
}

// BeforeQueryHookEntry wraps a BeforeQueryHook with metadata.
type BeforeQueryHookEntry struct {
	Name    string
	Timeout time.Duration
	Hook    BeforeQueryHook
}

// AfterQueryHookEntry wraps an AfterQueryHook with metadata.
type AfterQueryHookEntry struct {
	Name    string
	Timeout time.Duration
	Hook    AfterQueryHook
}
