package domain

import "time"

// SynthesizedModule is generated crawler source plus the inputs it was built from.
type SynthesizedModule struct {
	ID           string      `json:"id"`
	SourceText   string      `json:"source_text"`
	Selectors    SelectorSet `json:"selectors"`
	GeneratedAt  time.Time   `json:"generated_at"`
	PackageName  string      `json:"package_name"`
	FunctionName string      `json:"function_name"`
}

// Symbol is the qualified name an interpreter resolves to reach the entry point.
func (m SynthesizedModule) Symbol() string {
	return m.PackageName + "." + m.FunctionName
}

// Diagnostic is one compiler message for a synthesized module.
type Diagnostic struct {
	Message string `json:"message"`
	Attempt int    `json:"attempt"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Diagnostics is the ordered result of static validation. Only an empty list
// means the module may be executed.
type Diagnostics []Diagnostic

// OK reports whether validation passed.
func (d Diagnostics) OK() bool { return len(d) == 0 }

// Messages flattens the diagnostics for logs and error contexts.
func (d Diagnostics) Messages() []string {
	out := make([]string, len(d))
	for i, diag := range d {
		out[i] = diag.Message
	}
	return out
}
