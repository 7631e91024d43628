package rules

import (
	"strings"
	"testing"
	"time"
)

func TestPrompterAnnotate(t *testing.T) {
	t.Parallel()
	p, err := NewPrompter([]Prompt{
		{Pattern: `(?i)doesn't exist|no such table`, Message: "The table does not exist. Call list_tables first."},
		{Pattern: `(?i)access denied`, Message: "Ask an administrator for privileges."},
		{Pattern: `1146`, Message: "MySQL error 1146 means an unknown table."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		in       string
		want     string
		patterns int
	}{
		{
			name: "no match",
			in:   "SQL execution error: syntax error",
			want: "SQL execution error: syntax error",
		},
		{
			name:     "single match",
			in:       "SQL execution error: no such table: salaries",
			want:     "SQL execution error: no such table: salaries\n\nThe table does not exist. Call list_tables first.",
			patterns: 1,
		},
		{
			name:     "multiple matches keep rule order",
			in:       "Error 1146 (42S02): Table 'employees.x' doesn't exist",
			want:     "Error 1146 (42S02): Table 'employees.x' doesn't exist\n\nThe table does not exist. Call list_tables first.\nMySQL error 1146 means an unknown table.",
			patterns: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, matched := p.Annotate(tt.in)
			if got != tt.want {
				t.Errorf("Annotate() = %q, want %q", got, tt.want)
			}
			if len(matched) != tt.patterns {
				t.Errorf("matched %v, want %d patterns", matched, tt.patterns)
			}
		})
	}
}

func TestPrompterNil(t *testing.T) {
	t.Parallel()
	var p *Prompter
	got, matched := p.Annotate("boom")
	if got != "boom" || matched != nil {
		t.Fatalf("nil prompter changed message: %q %v", got, matched)
	}
}

func TestInvalidPatterns(t *testing.T) {
	t.Parallel()
	if _, err := NewPrompter([]Prompt{{Pattern: "[invalid"}}); err == nil || !strings.Contains(err.Error(), "error prompt") {
		t.Errorf("expected error prompt compile error, got %v", err)
	}
	if _, err := NewRedactor([]Redaction{{Pattern: "(unclosed"}}); err == nil || !strings.Contains(err.Error(), "redaction") {
		t.Errorf("expected redaction compile error, got %v", err)
	}
	if _, err := NewTimeouts(0, []Timeout{{Pattern: "*bad", Timeout: time.Second}}); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout compile error, got %v", err)
	}
}

var salaryRedaction = Redaction{Pattern: `^(\d)\d*(\.\d+)?$`, Replacement: "${1}xxxx"}

func TestRedactorRows(t *testing.T) {
	t.Parallel()
	r, err := NewRedactor([]Redaction{
		salaryRedaction,
		{Pattern: `[\w.]+@[\w.]+`, Replacement: "<email>"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Enabled() {
		t.Fatal("expected Enabled")
	}

	rows := []map[string]any{
		{
			"salary":  "60117.00",
			"contact": "georgi@example.com",
			"emp_no":  int64(10001),
			"nested":  map[string]any{"mail": "a@b.c", "list": []any{"x@y.z", 3.5}},
			"nothing": nil,
		},
	}
	r.Rows(rows)

	row := rows[0]
	if row["salary"] != "6xxxx" {
		t.Errorf("salary = %v", row["salary"])
	}
	if row["contact"] != "<email>" {
		t.Errorf("contact = %v", row["contact"])
	}
	if row["emp_no"] != int64(10001) {
		t.Errorf("emp_no changed: %v", row["emp_no"])
	}
	nested := row["nested"].(map[string]any)
	if nested["mail"] != "<email>" {
		t.Errorf("nested mail = %v", nested["mail"])
	}
	list := nested["list"].([]any)
	if list[0] != "<email>" || list[1] != 3.5 {
		t.Errorf("nested list = %v", list)
	}
	if row["nothing"] != nil {
		t.Errorf("nil changed: %v", row["nothing"])
	}
}

func TestRedactorRulesApplyInOrder(t *testing.T) {
	t.Parallel()
	r, err := NewRedactor([]Redaction{
		salaryRedaction,
		{Pattern: `xxxx`, Replacement: "****"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := []map[string]any{{"salary": "88958"}}
	r.Rows(rows)
	if rows[0]["salary"] != "8****" {
		t.Fatalf("expected chained redaction, got %v", rows[0]["salary"])
	}
}

func TestRedactorDisabled(t *testing.T) {
	t.Parallel()
	r, err := NewRedactor(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Enabled() {
		t.Fatal("expected disabled redactor")
	}
	rows := []map[string]any{{"a": "b"}}
	r.Rows(rows)
	if rows[0]["a"] != "b" {
		t.Fatal("disabled redactor changed a value")
	}
}

func TestTimeoutsFor(t *testing.T) {
	t.Parallel()
	tm, err := NewTimeouts(30*time.Second, []Timeout{
		{Pattern: `(?i)information_schema`, Timeout: 5 * time.Second},
		{Pattern: `(?i)\bJOIN\b`, Timeout: time.Minute},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		sql     string
		want    time.Duration
		pattern string
	}{
		{"SELECT * FROM information_schema.tables", 5 * time.Second, `(?i)information_schema`},
		{"SELECT * FROM information_schema.tables t JOIN x", 5 * time.Second, `(?i)information_schema`},
		{"SELECT * FROM employees e join salaries s USING (emp_no)", time.Minute, `(?i)\bJOIN\b`},
		{"SELECT 1", 30 * time.Second, ""},
	}
	for _, tt := range tests {
		got, pattern := tm.For(tt.sql)
		if got != tt.want || pattern != tt.pattern {
			t.Errorf("For(%q) = %v, %q; want %v, %q", tt.sql, got, pattern, tt.want, tt.pattern)
		}
	}
}

func TestTimeoutsZeroFallbackMeansNone(t *testing.T) {
	t.Parallel()
	tm, err := NewTimeouts(0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d, _ := tm.For("SELECT SLEEP(10)"); d != 0 {
		t.Fatalf("expected no deadline, got %v", d)
	}
}

func TestTimeoutsValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewTimeouts(-time.Second, nil); err == nil {
		t.Error("expected error for negative fallback")
	}
	if _, err := NewTimeouts(0, []Timeout{{Pattern: "x", Timeout: 0}}); err == nil {
		t.Error("expected error for non-positive rule timeout")
	}
}
