package rules

// Redaction replaces every match of Pattern in a string result value.
// Replacement may use $1-style group references.
type Redaction struct {
	Pattern     string
	Replacement string
}

// Redactor rewrites string values of result rows.
type Redactor struct {
	rules list[string]
}

// NewRedactor compiles redactions in order.
func NewRedactor(redactions []Redaction) (*Redactor, error) {
	patterns := make([]string, len(redactions))
	repls := make([]string, len(redactions))
	for i, r := range redactions {
		patterns[i] = r.Pattern
		repls[i] = r.Replacement
	}
	l, err := compile("redaction", patterns, repls)
	if err != nil {
		return nil, err
	}
	return &Redactor{rules: l}, nil
}

// Enabled reports whether any redaction is configured.
func (r *Redactor) Enabled() bool {
	return r != nil && len(r.rules) > 0
}

// Rows applies every redaction to every string value, in place, descending
// into nested maps and slices. Non-string scalars are left alone.
func (r *Redactor) Rows(rows []map[string]any) {
	if !r.Enabled() {
		return
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = r.value(v)
		}
	}
}

func (r *Redactor) value(v any) any {
	switch val := v.(type) {
	case string:
		for _, e := range r.rules {
			val = e.re.ReplaceAllString(val, e.val)
		}
		return val
	case map[string]any:
		for k, e := range val {
			val[k] = r.value(e)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = r.value(e)
		}
		return val
	}
	return v
}
