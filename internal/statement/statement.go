// Package statement detects multi-statement SQL input without parsing it.
package statement

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Flavor selects the lexical rules used to skip comments and quoted text.
type Flavor int

const (
	// Standard handles -- and /* */ comments, '' strings, "" `` and [] identifiers.
	Standard Flavor = iota
	// MySQL additionally treats # as a line comment and \ as an escape in strings.
	MySQL
	// Postgres splits with the PostgreSQL scanner and falls back to Standard.
	Postgres
)

// Count returns the number of non-empty statements in sql.
func Count(sql string, flavor Flavor) int {
	if flavor == Postgres {
		parts, err := pg_query.SplitWithScanner(sql, true)
		if err == nil {
			n := 0
			for _, p := range parts {
				if strings.TrimSpace(p) != "" {
					n++
				}
			}
			return n
		}
		flavor = Standard
	}

	n := 0
	for _, part := range strings.Split(StripLiterals(sql, flavor), ";") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// CheckSingle returns an error when sql holds more than one statement.
// A single trailing semicolon is fine.
func CheckSingle(sql string, flavor Flavor) error {
	if n := Count(sql, flavor); n > 1 {
		return fmt.Errorf("multi-statement queries are not allowed: found %d statements", n)
	}
	return nil
}

// StripLiterals blanks out comments and quoted strings/identifiers so that
// punctuation inside them is not mistaken for statement separators.
func StripLiterals(sql string, flavor Flavor) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	skipQuoted := func(quote byte, backslash bool) {
		i++
		for i < n {
			if sql[i] == quote {
				if i+1 < n && sql[i+1] == quote {
					i += 2
					continue
				}
				i++
				return
			}
			if backslash && sql[i] == '\\' && i+1 < n {
				i += 2
				continue
			}
			i++
		}
	}

	for i < n {
		c := sql[i]
		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-', c == '#' && flavor == MySQL:
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			result.WriteByte(' ')
		case c == '\'':
			skipQuoted('\'', flavor == MySQL)
			result.WriteString("''")
		case c == '"':
			skipQuoted('"', flavor == MySQL)
			result.WriteString(`""`)
		case c == '`':
			skipQuoted('`', false)
			result.WriteString("``")
		case c == '[' && flavor == Standard:
			for i < n && sql[i] != ']' {
				i++
			}
			i++
			result.WriteString("[]")
		default:
			result.WriteByte(c)
			i++
		}
	}
	return result.String()
}
