package rules

import (
	"fmt"
	"time"
)

// Timeout bounds queries whose text matches Pattern.
type Timeout struct {
	Pattern string
	Timeout time.Duration
}

// Timeouts resolves the deadline for a query. First matching rule wins.
type Timeouts struct {
	rules    list[time.Duration]
	fallback time.Duration
}

// NewTimeouts compiles rules. fallback applies when no rule matches; zero
// means no deadline.
func NewTimeouts(fallback time.Duration, timeouts []Timeout) (*Timeouts, error) {
	if fallback < 0 {
		return nil, fmt.Errorf("timeout: default timeout %s is negative", fallback)
	}
	patterns := make([]string, len(timeouts))
	durs := make([]time.Duration, len(timeouts))
	for i, t := range timeouts {
		if t.Timeout <= 0 {
			return nil, fmt.Errorf("timeout: rule %q must have a positive timeout", t.Pattern)
		}
		patterns[i] = t.Pattern
		durs[i] = t.Timeout
	}
	l, err := compile("timeout", patterns, durs)
	if err != nil {
		return nil, err
	}
	return &Timeouts{rules: l, fallback: fallback}, nil
}

// For returns the timeout of sql and the pattern that selected it ("" for
// the fallback).
func (t *Timeouts) For(sql string) (time.Duration, string) {
	if d, pattern, ok := t.rules.first(sql); ok {
		return d, pattern
	}
	return t.fallback, ""
}
