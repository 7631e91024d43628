// Package hooks runs external commands around query execution. Each hook
// receives one JSON Event on stdin and must print one JSON Reply on stdout.
// Any failure, timeout or rejection stops the query.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

// Stage names the point in the pipeline a hook runs at.
type Stage string

const (
	StageBefore Stage = "before_query"
	StageAfter  Stage = "after_query"
)

// Config configures a Runner.
type Config struct {
	DefaultTimeout time.Duration
	Before         []Entry
	After          []Entry
}

// Entry is one command hook. It runs only for queries matching Pattern.
type Entry struct {
	Name    string
	Pattern string
	Command string
	Args    []string
	Timeout time.Duration // 0 means DefaultTimeout
}

// Event is written to a hook's stdin.
type Event struct {
	Stage  Stage           `json:"stage"`
	Query  string          `json:"query"`
	Params []any           `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Reply is read from a hook's stdout. A before_query hook may replace the
// query; an after_query hook may replace the result.
type Reply struct {
	Accept bool            `json:"accept"`
	Query  string          `json:"query,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type hook struct {
	name    string
	pattern *regexp.Regexp
	command string
	args    []string
	timeout time.Duration
}

// Runner executes command hooks in configured order.
type Runner struct {
	before []hook
	after  []hook
	logger zerolog.Logger
}

// NewRunner validates cfg and compiles the hook patterns.
func NewRunner(cfg Config, logger zerolog.Logger) (*Runner, error) {
	if cfg.DefaultTimeout <= 0 && len(cfg.Before)+len(cfg.After) > 0 {
		return nil, errors.New("hooks: default timeout must be > 0 when hooks are configured")
	}
	before, err := compileHooks(StageBefore, cfg.Before, cfg.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	after, err := compileHooks(StageAfter, cfg.After, cfg.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return &Runner{before: before, after: after, logger: logger}, nil
}

func compileHooks(stage Stage, entries []Entry, def time.Duration) ([]hook, error) {
	out := make([]hook, len(entries))
	for i, e := range entries {
		if e.Command == "" {
			return nil, fmt.Errorf("hooks: %s hook #%d has no command", stage, i+1)
		}
		if e.Timeout < 0 {
			return nil, fmt.Errorf("hooks: %s hook %q has a negative timeout", stage, e.Command)
		}
		pattern := e.Pattern
		if pattern == "" {
			pattern = ".*"
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("hooks: invalid regex pattern %q: %w", e.Pattern, err)
		}
		name := e.Name
		if name == "" {
			name = filepath.Base(e.Command)
		}
		timeout := e.Timeout
		if timeout == 0 {
			timeout = def
		}
		out[i] = hook{name: name, pattern: re, command: e.Command, args: e.Args, timeout: timeout}
	}
	return out, nil
}

// HasBefore reports whether any before_query hooks are configured.
func (r *Runner) HasBefore() bool { return r != nil && len(r.before) > 0 }

// HasAfter reports whether any after_query hooks are configured.
func (r *Runner) HasAfter() bool { return r != nil && len(r.after) > 0 }

// Before runs the matching before_query hooks as a chain; each sees the
// query as rewritten by the previous one. It returns the final query and
// the names of the hooks that ran.
func (r *Runner) Before(ctx context.Context, query string, params []any) (string, []string, error) {
	var ran []string
	for _, h := range r.before {
		if !h.pattern.MatchString(query) {
			continue
		}
		reply, err := r.run(ctx, h, Event{Stage: StageBefore, Query: query, Params: params})
		if err != nil {
			return "", ran, fmt.Errorf("before_query hook error: %w", err)
		}
		ran = append(ran, h.name)
		if !reply.Accept {
			return "", ran, rejection(h, reply, "query rejected by hook")
		}
		if reply.Query != "" {
			query = reply.Query
		}
	}
	return query, ran, nil
}

// After runs the matching after_query hooks over a JSON result. A hook that
// returns a result replaces it for the rest of the chain.
func (r *Runner) After(ctx context.Context, query string, result json.RawMessage) (json.RawMessage, []string, error) {
	var ran []string
	for _, h := range r.after {
		if !h.pattern.MatchString(query) {
			continue
		}
		reply, err := r.run(ctx, h, Event{Stage: StageAfter, Query: query, Result: result})
		if err != nil {
			return nil, ran, fmt.Errorf("after_query hook error: %w", err)
		}
		ran = append(ran, h.name)
		if !reply.Accept {
			return nil, ran, rejection(h, reply, "result rejected by hook")
		}
		if len(reply.Result) > 0 {
			result = reply.Result
		}
	}
	return result, ran, nil
}

func rejection(h hook, reply *Reply, fallback string) error {
	msg := reply.Error
	if msg == "" {
		msg = fallback
	}
	return fmt.Errorf("%s (hook: %s)", msg, h.name)
}

func (r *Runner) run(ctx context.Context, h hook, ev Event) (*Reply, error) {
	input, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hook input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	// No shell: the command runs directly with its own argument list.
	cmd := exec.CommandContext(ctx, h.command, h.args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	logEvent := r.logger.Debug()
	if err != nil {
		logEvent = r.logger.Warn()
	}
	if stderr.Len() > 0 {
		logEvent = logEvent.Str("stderr", stderr.String())
	}
	logEvent.Str("hook", h.name).Str("stage", string(ev.Stage)).Dur("duration", time.Since(start)).Msg("hook finished")

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("hook timed out (name: %s, timeout: %s)", h.name, h.timeout)
		}
		return nil, fmt.Errorf("hook failed (name: %s): %w", h.name, err)
	}

	var reply Reply
	if err := json.Unmarshal(out, &reply); err != nil {
		return nil, fmt.Errorf("hook returned unparseable response (name: %s): %w", h.name, err)
	}
	return &reply, nil
}
