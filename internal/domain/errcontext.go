package domain

import (
	"fmt"
	"strings"
)

// ErrorContext is what a repair cycle hands to the next synthesis: the
// failing attempt's errors and the advisory proposal made for them.
type ErrorContext struct {
	Attempt  int             `json:"attempt"`
	Errors   []StepError     `json:"errors"`
	Proposal *RepairProposal `json:"proposal,omitempty"`
}

// Has reports whether an error of kind k is part of the context.
func (c *ErrorContext) Has(k ErrorKind) bool {
	if c == nil {
		return false
	}
	for _, e := range c.Errors {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Text renders the context as plain lines, verbatim error messages included.
func (c *ErrorContext) Text() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Live attempt %d failed with %d error(s):\n", c.Attempt, len(c.Errors))
	for _, e := range c.Errors {
		fmt.Fprintf(&b, "- %s\n", e.String())
	}
	if p := c.Proposal; p != nil {
		fmt.Fprintf(&b, "Root cause: %s\n", p.RootCause)
		for _, f := range p.Fixes {
			line := ""
			if f.LineNumber != nil {
				line = fmt.Sprintf(" (line %d)", *f.LineNumber)
			}
			fmt.Fprintf(&b, "Fix p%d%s: %s -> %s\n", f.Priority, line, f.Issue, f.Solution)
		}
		fmt.Fprintf(&b, "Regenerate: %t\n", p.RegenerateNeeded)
	}
	return strings.TrimRight(b.String(), "\n")
}
