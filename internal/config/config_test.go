package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sqlgate/sqlgate"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		flag string
		env  map[string]string
		want string
	}{
		{"cfg.json", map[string]string{EnvConfigPath: "env.yaml"}, "cfg.json"},
		{"", map[string]string{EnvConfigPath: "env.yaml"}, "env.yaml"},
		{"", nil, DefaultFile},
	}
	for _, tt := range tests {
		if got := Path(tt.flag, envMap(tt.env)); got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.flag, got, tt.want)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Load(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Connection.Port != 3306 || cfg.Server.Port != 8000 || cfg.Pool.MaxConns != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
connection:
  driver: postgres
  host: db.internal
  port: 5432
  user: reporter
  dbname: employees
server:
  port: 9000
pool:
  max_conns: 3
read_only: true
denylist:
  - DROP TABLE
  - GRANT
query:
  max_result_length: 5000
  timeout_rules:
    - pattern: "(?i)salaries"
      timeout_seconds: 5
server_hooks:
  before_query:
    - name: audit
      command: /usr/local/bin/audit
      args: ["--strict"]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connection.Driver != "postgres" || cfg.Connection.Host != "db.internal" || cfg.Server.Port != 9000 {
		t.Fatalf("unexpected connection/server: %+v %+v", cfg.Connection, cfg.Server)
	}
	if cfg.Pool.MaxConns != 3 || !cfg.ReadOnly || len(cfg.Denylist) != 2 {
		t.Fatalf("inline Config fields not loaded: %+v", cfg.Config)
	}
	if cfg.Query.MaxResultLength != 5000 || cfg.Query.DefaultTimeoutSeconds != 30 {
		t.Fatalf("unexpected query config: %+v", cfg.Query)
	}
	if len(cfg.Query.TimeoutRules) != 1 || cfg.Query.TimeoutRules[0].TimeoutSeconds != 5 {
		t.Fatalf("timeout rules not loaded: %+v", cfg.Query.TimeoutRules)
	}
	if len(cfg.ServerHooks.BeforeQuery) != 1 || cfg.ServerHooks.BeforeQuery[0].Args[0] != "--strict" {
		t.Fatalf("hooks not loaded: %+v", cfg.ServerHooks)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Connection.Driver = "sqlite"
			cfg.Connection.DBName = "/var/lib/sqlgate/employees.db"
			cfg.ErrorPrompts = []sqlgate.ErrorPromptRule{{Pattern: "denied", Message: "ask an admin"}}

			if err := Save(path, cfg); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.Connection.DBName != cfg.Connection.DBName || len(got.ErrorPrompts) != 1 {
				t.Fatalf("round trip mismatch: %+v", got)
			}

			entries, err := os.ReadDir(filepath.Dir(path))
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 {
				t.Fatalf("temp files left behind: %v", entries)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg := Default()
	err := ApplyEnv(cfg, envMap(map[string]string{
		EnvDriver: "sqlserver",
		EnvHost:   "mssql.local",
		EnvPort:   "1433",
		EnvUser:   "sa",
		EnvName:   "hr",
		EnvDSN:    "sqlserver://sa:pw@mssql.local:1433?database=hr",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	want := sqlgate.ConnectionConfig{
		Driver: "sqlserver",
		Host:   "mssql.local",
		Port:   1433,
		User:   "sa",
		DBName: "hr",
		DSN:    "sqlserver://sa:pw@mssql.local:1433?database=hr",
	}
	if cfg.Connection != want {
		t.Fatalf("got %+v, want %+v", cfg.Connection, want)
	}

	if err := ApplyEnv(cfg, envMap(map[string]string{EnvPort: "abc"})); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SQLGATE_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLGATE_TEST_DOTENV", "")
	os.Unsetenv("SQLGATE_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SQLGATE_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	if err := Validate(Default()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	cfg := Default()
	cfg.Connection.Driver = "oracle"
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"
	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"connection.driver", "server.port", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}
