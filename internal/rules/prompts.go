package rules

import "strings"

// Prompt appends Message to any error message matching Pattern.
type Prompt struct {
	Pattern string
	Message string
}

// Prompter attaches guidance to error messages.
type Prompter struct {
	rules list[string]
}

// NewPrompter compiles prompts in order.
func NewPrompter(prompts []Prompt) (*Prompter, error) {
	patterns := make([]string, len(prompts))
	msgs := make([]string, len(prompts))
	for i, p := range prompts {
		patterns[i] = p.Pattern
		msgs[i] = p.Message
	}
	l, err := compile("error prompt", patterns, msgs)
	if err != nil {
		return nil, err
	}
	return &Prompter{rules: l}, nil
}

// Annotate returns errMsg followed by a blank line and every matching
// guidance message, one per line. matched lists the patterns that fired;
// it is nil when errMsg is returned unchanged.
func (p *Prompter) Annotate(errMsg string) (annotated string, matched []string) {
	if p == nil {
		return errMsg, nil
	}
	msgs, patterns := p.rules.all(errMsg)
	if len(msgs) == 0 {
		return errMsg, nil
	}
	return errMsg + "\n\n" + strings.Join(msgs, "\n"), patterns
}
