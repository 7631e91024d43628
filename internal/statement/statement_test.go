package statement

import (
	"strings"
	"testing"
)

func TestCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		sql    string
		flavor Flavor
		want   int
	}{
		{"single", "SELECT 1", Standard, 1},
		{"trailing semicolon", "SELECT 1;", Standard, 1},
		{"trailing semicolon and space", "SELECT 1;  \n", Standard, 1},
		{"two", "SELECT 1; SELECT 2", Standard, 2},
		{"select then drop", "SELECT 1; DROP TABLE employees;", Standard, 2},
		{"semicolon in string", "SELECT 'a;b' AS x", Standard, 1},
		{"semicolon in line comment", "SELECT 1 -- a; b\n", Standard, 1},
		{"semicolon in block comment", "SELECT /* ; */ 1", Standard, 1},
		{"semicolon in double quotes", `SELECT "a;b" FROM t`, Standard, 1},
		{"semicolon in backticks", "SELECT `a;b` FROM t", MySQL, 1},
		{"semicolon in brackets", "SELECT [a;b] FROM t", Standard, 1},
		{"mysql hash comment", "SELECT 1 # ; DROP TABLE x\n", MySQL, 1},
		{"mysql backslash escape", `SELECT 'it\'s; fine'`, MySQL, 1},
		{"mysql hash is not a comment elsewhere", "SELECT 1 # x\n; SELECT 2", Standard, 2},
		{"empty", "", Standard, 0},
		{"only semicolons", ";;", Standard, 0},
		{"postgres two", "SELECT 1; SELECT 2", Postgres, 2},
		{"postgres string", "SELECT 'a;b'", Postgres, 1},
		{"postgres dollar quoted", "SELECT $$a;b$$", Postgres, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Count(tt.sql, tt.flavor); got != tt.want {
				t.Fatalf("Count(%q) = %d, want %d", tt.sql, got, tt.want)
			}
		})
	}
}

func TestCheckSingle(t *testing.T) {
	t.Parallel()
	if err := CheckSingle("SELECT * FROM employees LIMIT 1;", MySQL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := CheckSingle("SELECT 1; SELECT 2; SELECT 3", MySQL)
	if err == nil {
		t.Fatal("expected multi-statement error")
	}
	if !strings.Contains(err.Error(), "found 3 statements") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStripLiterals(t *testing.T) {
	t.Parallel()
	got := StripLiterals("SELECT 'x;y', \"a\" -- c\nFROM t /* z */", Standard)
	if strings.Contains(got, ";") {
		t.Fatalf("expected semicolon removed, got %q", got)
	}
	if !strings.Contains(got, "SELECT") || !strings.Contains(got, "FROM t") {
		t.Fatalf("expected SQL keywords preserved, got %q", got)
	}
}

func TestStripLiteralsUnterminated(t *testing.T) {
	t.Parallel()
	// Unterminated literals and comments swallow the rest of the input.
	for _, sql := range []string{"SELECT 'abc; DROP", "SELECT /* ; DROP", "SELECT [abc; x"} {
		if got := StripLiterals(sql, Standard); strings.Contains(got, ";") {
			t.Fatalf("StripLiterals(%q) = %q, expected no semicolon", sql, got)
		}
	}
}
