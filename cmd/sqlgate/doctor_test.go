package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sqlgate/sqlgate"
)

func TestDoctor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*sqlgate.ServerConfig)
		missing  bool
		contains []string
		absent   []string
	}{
		{
			name: "valid config",
			contains: []string{
				"Config file loads",
				"Config is valid (driver mysql, port 8000)",
				"connection.dbname is set (employees)",
				"All regex patterns compile",
				"Built-in denylist",
				"curl -s -X POST http://localhost:8000/api/execute",
				"claude mcp add --transport http sqlgate http://localhost:8000/mcp",
			},
			absent: []string{"✗", "Fix the issues above"},
		},
		{
			name: "bad regex and denylist",
			mutate: func(c *sqlgate.ServerConfig) {
				c.Sanitization = []sqlgate.SanitizationRule{{Pattern: "(unclosed", Replacement: "x"}}
				c.Denylist = []string{"DROP TABLE"}
			},
			contains: []string{"✗ sanitization[0] regex compiles", "Custom denylist (1 phrases)", "Fix the issues above"},
			absent:   []string{"All regex patterns compile", "REST API"},
		},
		{
			name:     "invalid port",
			mutate:   func(c *sqlgate.ServerConfig) { c.Server.Port = 0 },
			contains: []string{"✗ Config is valid: server.port 0 is invalid"},
		},
		{
			name:     "dsn replaces dbname",
			mutate:   func(c *sqlgate.ServerConfig) { c.Connection.DBName = ""; c.Connection.DSN = "root:pw@tcp(h:3306)/db" },
			contains: []string{"connection.dsn is set"},
			absent:   []string{"✗"},
		},
		{
			name:     "mcp disabled",
			mutate:   func(c *sqlgate.ServerConfig) { c.Server.MCPEnabled = false },
			contains: []string{"MCP is disabled"},
			absent:   []string{"claude mcp add"},
		},
		{
			name:     "missing file",
			missing:  true,
			contains: []string{"✗ Config file loads", "Fix the issues above"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "absent.yaml")
			if !tt.missing {
				path = writeConfig(t, "config.yaml", tt.mutate)
			}
			var buf bytes.Buffer
			if err := doctor(context.Background(), &buf, false, path, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out := buf.String()
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("missing %q in output:\n%s", s, out)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("unexpected %q in output:\n%s", s, out)
				}
			}
		})
	}
}

func TestDoctor_ConnectSQLite(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "employees.db")
	path := writeConfig(t, "config.yaml", func(c *sqlgate.ServerConfig) {
		c.Connection = sqlgate.ConnectionConfig{Driver: "sqlite", DBName: dbPath}
	})

	var buf bytes.Buffer
	if err := doctor(context.Background(), &buf, false, path, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "✓ Database reachable") || strings.Contains(out, "✗") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestPrintCheck(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printCheck(&buf, true, true, "ok")
	printCheck(&buf, false, false, "bad")
	want := "  \033[32m✓\033[0m ok\n  ✗ bad\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}
