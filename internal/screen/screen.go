// Package screen implements the pre-execution safety screen: a fixed, ordered
// denylist of destructive SQL phrases matched as plain substrings.
//
// The screen is intentionally shallow. It does not tokenize or parse, so it
// blocks a listed phrase even inside a comment or string literal, and it lets
// through equivalent statements spelled differently (extra whitespace between
// words, quoted identifiers, tables that are not on the list).
package screen

import (
	"fmt"
	"strings"
)

// Denylist is the ordered set of phrases that cause a query to be rejected.
// Earlier entries win when several match.
var Denylist = []string{
	"DROP DATABASE",
	"DROP TABLE",
	"TRUNCATE",
	"DELETE FROM employees",
	"DELETE FROM departments",
	"UPDATE employees SET",
	"UPDATE departments SET",
}

// Verdict is the outcome of screening a single query.
type Verdict struct {
	Allowed bool
	// Reason is empty when Allowed is true.
	Reason string
	// Phrase is the denylist entry that matched, if any.
	Phrase string
}

// Screener checks SQL text against a denylist.
type Screener struct {
	phrases []phrase
}

type phrase struct {
	listed string
	upper  string
}

// New creates a Screener over the given phrases. A nil or empty list falls back
// to Denylist.
func New(phrases []string) *Screener {
	if len(phrases) == 0 {
		phrases = Denylist
	}
	compiled := make([]phrase, len(phrases))
	for i, p := range phrases {
		compiled[i] = phrase{listed: p, upper: strings.ToUpper(p)}
	}
	return &Screener{phrases: compiled}
}

var defaultScreener = New(nil)

// Check screens sql against Denylist.
func Check(sql string) Verdict {
	return defaultScreener.Check(sql)
}

// Check upper-cases and trims sql, then reports the first phrase it contains.
func (s *Screener) Check(sql string) Verdict {
	normalized := strings.ToUpper(strings.TrimSpace(sql))
	for _, p := range s.phrases {
		if strings.Contains(normalized, p.upper) {
			return Verdict{
				Allowed: false,
				Reason:  fmt.Sprintf("Operation containing '%s' is forbidden", p.listed),
				Phrase:  p.listed,
			}
		}
	}
	return Verdict{Allowed: true}
}

// Phrases returns a copy of the phrases in match order.
func (s *Screener) Phrases() []string {
	out := make([]string, len(s.phrases))
	for i, p := range s.phrases {
		out[i] = p.listed
	}
	return out
}
