// Package rules compiles the regex-keyed rule lists of a gateway config:
// guidance prompts appended to error messages, redactions applied to result
// values, and per-query timeouts.
package rules

import (
	"fmt"
	"regexp"
)

type entry[T any] struct {
	re  *regexp.Regexp
	val T
}

type list[T any] []entry[T]

func compile[T any](kind string, patterns []string, vals []T) (list[T], error) {
	out := make(list[T], len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid regex pattern %q: %w", kind, p, err)
		}
		out[i] = entry[T]{re: re, val: vals[i]}
	}
	return out, nil
}

// first returns the value of the first entry matching s.
func (l list[T]) first(s string) (T, string, bool) {
	for _, e := range l {
		if e.re.MatchString(s) {
			return e.val, e.re.String(), true
		}
	}
	var zero T
	return zero, "", false
}

// all returns the values and patterns of every entry matching s, in order.
func (l list[T]) all(s string) ([]T, []string) {
	var vals []T
	var patterns []string
	for _, e := range l {
		if e.re.MatchString(s) {
			vals = append(vals, e.val)
			patterns = append(patterns, e.re.String())
		}
	}
	return vals, patterns
}
