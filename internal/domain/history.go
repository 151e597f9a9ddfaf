package domain

import (
	"strconv"
	"time"
)

// EntryKind tags what a HistoryEntry carries.
type EntryKind string

const (
	EntryModule      EntryKind = "module"
	EntryDiagnostics EntryKind = "diagnostics"
	EntryExecution   EntryKind = "execution"
	EntryProposal    EntryKind = "proposal"
)

// HistoryEntry is one append-only audit item of a run. Exactly one payload
// field is set, matching Kind.
type HistoryEntry struct {
	Kind        EntryKind          `json:"kind"`
	State       State              `json:"state"`
	Attempt     int                `json:"attempt"`
	At          time.Time          `json:"at"`
	Module      *SynthesizedModule `json:"module,omitempty"`
	Diagnostics Diagnostics        `json:"diagnostics,omitempty"`
	Execution   *ExecutionResult   `json:"execution,omitempty"`
	Proposal    *RepairProposal    `json:"proposal,omitempty"`
}

// Summary is a one-line description for tables and journals.
func (e HistoryEntry) Summary() string {
	switch e.Kind {
	case EntryModule:
		if e.Module != nil {
			return "synthesized " + e.Module.Symbol()
		}
	case EntryDiagnostics:
		if e.Diagnostics.OK() {
			return "static validation passed"
		}
		return plural(len(e.Diagnostics), "diagnostic")
	case EntryExecution:
		if e.Execution != nil {
			return plural(len(e.Execution.Records), "record") + ", " + plural(len(e.Execution.Errors), "error")
		}
	case EntryProposal:
		if e.Proposal != nil {
			return truncate(e.Proposal.RootCause, 80)
		}
	}
	return string(e.Kind)
}

func plural(n int, noun string) string {
	s := strconv.Itoa(n) + " " + noun
	if n != 1 {
		s += "s"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
