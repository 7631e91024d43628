package hooks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// writeScript writes an executable shell hook that drains stdin and then
// runs body.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func acceptScript(t *testing.T) string {
	return writeScript(t, "accept.sh", `cat >/dev/null
echo '{"accept":true}'`)
}

func newRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 5 * time.Second
	}
	r, err := NewRunner(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestBeforeAccept(t *testing.T) {
	t.Parallel()
	r := newRunner(t, Config{Before: []Entry{{Command: acceptScript(t)}}})

	got, ran, err := r.Before(context.Background(), "SELECT 1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("expected query unchanged, got %q", got)
	}
	if len(ran) != 1 || ran[0] != "accept.sh" {
		t.Fatalf("ran = %v, want [accept.sh]", ran)
	}
}

func TestBeforeRewriteChains(t *testing.T) {
	t.Parallel()
	limit := writeScript(t, "limit.sh", `cat >/dev/null
echo '{"accept":true,"query":"SELECT * FROM employees LIMIT 5"}'`)
	seen := filepath.Join(t.TempDir(), "seen.json")
	record := writeScript(t, "record.sh", `cat >`+seen+`
echo '{"accept":true}'`)

	r := newRunner(t, Config{Before: []Entry{
		{Name: "limiter", Command: limit},
		{Name: "recorder", Command: record},
	}})
	got, ran, err := r.Before(context.Background(), "SELECT * FROM employees", []any{"x", 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT * FROM employees LIMIT 5" {
		t.Fatalf("got %q", got)
	}
	if strings.Join(ran, ",") != "limiter,recorder" {
		t.Fatalf("ran = %v", ran)
	}

	raw, err := os.ReadFile(seen)
	if err != nil {
		t.Fatalf("read recorded input: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode recorded input: %v", err)
	}
	if ev.Stage != StageBefore || ev.Query != "SELECT * FROM employees LIMIT 5" || len(ev.Params) != 2 {
		t.Fatalf("second hook saw %+v", ev)
	}
}

func TestBeforeReject(t *testing.T) {
	t.Parallel()
	reject := writeScript(t, "reject.sh", `cat >/dev/null
echo '{"accept":false,"error":"no salary scans during business hours"}'`)
	r := newRunner(t, Config{Before: []Entry{{Command: reject}}})

	_, _, err := r.Before(context.Background(), "SELECT * FROM salaries", nil)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(err.Error(), "no salary scans during business hours") || !strings.Contains(err.Error(), "reject.sh") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBeforeRejectDefaultMessage(t *testing.T) {
	t.Parallel()
	reject := writeScript(t, "reject.sh", `cat >/dev/null
echo '{"accept":false}'`)
	r := newRunner(t, Config{Before: []Entry{{Command: reject}}})

	_, _, err := r.Before(context.Background(), "SELECT 1", nil)
	if err == nil || !strings.Contains(err.Error(), "query rejected by hook") {
		t.Fatalf("expected default rejection message, got %v", err)
	}
}

func TestBeforePatternNoMatch(t *testing.T) {
	t.Parallel()
	reject := writeScript(t, "reject.sh", `cat >/dev/null
echo '{"accept":false}'`)
	r := newRunner(t, Config{Before: []Entry{{Pattern: `(?i)salaries`, Command: reject}}})

	got, ran, err := r.Before(context.Background(), "SELECT * FROM departments", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT * FROM departments" || len(ran) != 0 {
		t.Fatalf("non-matching hook ran: %q %v", got, ran)
	}
}

func TestHookFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		body    string
		timeout time.Duration
		want    string
	}{
		{name: "non-zero exit", body: "cat >/dev/null\nexit 3", want: "hook failed"},
		{name: "garbage output", body: "cat >/dev/null\necho not-json", want: "unparseable"},
		{name: "timeout", body: "cat >/dev/null\nexec sleep 5", timeout: 100 * time.Millisecond, want: "timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			script := writeScript(t, "hook.sh", tt.body)
			r := newRunner(t, Config{Before: []Entry{{Command: script, Timeout: tt.timeout}}})
			_, _, err := r.Before(context.Background(), "SELECT 1", nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestAfterReplacesResult(t *testing.T) {
	t.Parallel()
	replace := writeScript(t, "replace.sh", `cat >/dev/null
echo '{"accept":true,"result":{"success":true,"rows_affected":0}}'`)
	r := newRunner(t, Config{After: []Entry{{Command: replace}}})
	if !r.HasAfter() || r.HasBefore() {
		t.Fatal("unexpected hook presence")
	}

	got, ran, err := r.After(context.Background(), "UPDATE t SET x = 1", json.RawMessage(`{"success":true,"rows_affected":7}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ran) != 1 {
		t.Fatalf("ran = %v", ran)
	}
	var m map[string]any
	if err := json.Unmarshal(got, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["rows_affected"] != float64(0) {
		t.Fatalf("result not replaced: %s", got)
	}
}

func TestAfterReject(t *testing.T) {
	t.Parallel()
	reject := writeScript(t, "guard.sh", `cat >/dev/null
echo '{"accept":false,"error":"too many rows touched"}'`)
	r := newRunner(t, Config{After: []Entry{{Command: reject}}})

	_, _, err := r.After(context.Background(), "DELETE FROM salaries", json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "too many rows touched") {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no default timeout", Config{Before: []Entry{{Command: "/bin/true"}}}},
		{"bad pattern", Config{DefaultTimeout: time.Second, Before: []Entry{{Pattern: "[", Command: "/bin/true"}}}},
		{"missing command", Config{DefaultTimeout: time.Second, After: []Entry{{Pattern: ".*"}}}},
		{"negative timeout", Config{DefaultTimeout: time.Second, After: []Entry{{Command: "/bin/true", Timeout: -time.Second}}}},
	}
	for _, tt := range tests {
		if _, err := NewRunner(tt.cfg, testLogger()); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	r, err := NewRunner(Config{}, testLogger())
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if r.HasBefore() || r.HasAfter() {
		t.Fatal("empty runner reports hooks")
	}
}
