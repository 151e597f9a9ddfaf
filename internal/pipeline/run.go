package pipeline

import (
	"time"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
)

// StepStaticValidate labels diagnostics reported as remaining errors.
const StepStaticValidate = "static-validate"

// Transition is one recorded state change.
type Transition struct {
	From domain.State `json:"from"`
	To   domain.State `json:"to"`
	At   time.Time    `json:"at"`
}

// Run is the aggregate for one board submission. Only the Controller that
// created it mutates it, and nothing changes once State is terminal.
type Run struct {
	ID                string                `json:"id"`
	Board             domain.BoardSource    `json:"board"`
	State             domain.State          `json:"state"`
	StaticAttempt     int                   `json:"static_attempt"`
	LiveAttempt       int                   `json:"live_attempt"`
	MaxStaticAttempts int                   `json:"max_static_attempts"`
	MaxLiveAttempts   int                   `json:"max_live_attempts"`
	Selectors         domain.SelectorSet    `json:"selectors"`
	History           []domain.HistoryEntry `json:"history"`
	Transitions       []Transition          `json:"transitions"`
	StartedAt         time.Time             `json:"started_at"`
	FinishedAt        time.Time             `json:"finished_at,omitempty"`

	module      *domain.SynthesizedModule
	synthErr    error
	diagnostics domain.Diagnostics
	execution   *domain.ExecutionResult
	proposal    *domain.RepairProposal
	errCtx      *domain.ErrorContext
	outcome     *Outcome
}

// Module is the most recently synthesized module, if any.
func (r *Run) Module() *domain.SynthesizedModule { return r.module }

// Outcome is set once the run is terminal.
func (r *Run) Outcome() *Outcome { return r.outcome }

// Count returns how many transitions entered state s.
func (r *Run) Count(s domain.State) int {
	n := 0
	for _, t := range r.Transitions {
		if t.To == s {
			n++
		}
	}
	return n
}

// Attempts reports both tier counters.
type Attempts struct {
	Static int `json:"static"`
	Live   int `json:"live"`
}

// Outcome is the terminal result handed back to the caller.
type Outcome struct {
	RunID           string                    `json:"run_id"`
	Board           string                    `json:"board"`
	Success         bool                      `json:"success"`
	State           domain.State              `json:"state"`
	FinalModule     *domain.SynthesizedModule `json:"final_module,omitempty"`
	LastModule      *domain.SynthesizedModule `json:"last_module,omitempty"`
	Attempts        Attempts                  `json:"attempts"`
	RemainingErrors []domain.StepError        `json:"remaining_errors,omitempty"`
	Records         []domain.Record           `json:"records,omitempty"`
	History         []domain.HistoryEntry     `json:"history"`
	Transitions     []Transition              `json:"transitions"`
	Duration        time.Duration             `json:"duration"`
}

func diagnosticErrors(d domain.Diagnostics) []domain.StepError {
	out := make([]domain.StepError, 0, len(d))
	for _, diag := range d {
		out = append(out, domain.StepError{Step: StepStaticValidate, Kind: domain.KindStaticCompile, Error: diag.Message})
	}
	return out
}
