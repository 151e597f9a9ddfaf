package pipeline_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
)

var board = domain.BoardSource{
	Name:   "Incheon",
	URL:    "https://ice.example/board/list",
	Region: "인천",
	SampledMarkup: `<table><tbody>
<tr><td class="subject"><a href="/v/1">notice</a></td></tr>
<tr><td class="subject"><a href="/v/2">notice</a></td></tr>
</tbody></table>`,
}

var zeroRows = domain.ExecutionResult{Errors: []domain.StepError{
	{Step: "detect-rows", Kind: domain.KindSelectorMismatch, Error: "no records collected"},
}}

var collected = domain.ExecutionResult{Records: []domain.Record{{Title: "notice", URL: "https://ice.example/v/1"}}}

type fakeAnalyzer struct {
	set domain.SelectorSet

	mu     sync.Mutex
	markup []string
}

func (a *fakeAnalyzer) Analyze(markup string) domain.SelectorSet {
	a.mu.Lock()
	a.markup = append(a.markup, markup)
	a.mu.Unlock()
	return a.set.Clone()
}

type fakeSynth struct {
	mu       sync.Mutex
	calls    int
	contexts []*domain.ErrorContext
	sets     []domain.SelectorSet
}

func (s *fakeSynth) Synthesize(b domain.BoardSource, set domain.SelectorSet, errCtx *domain.ErrorContext) (domain.SynthesizedModule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.contexts = append(s.contexts, errCtx)
	s.sets = append(s.sets, set.Clone())
	return domain.SynthesizedModule{
		ID:           "mod",
		SourceText:   "package boards // " + set.Head(domain.FieldRows),
		Selectors:    set.Clone(),
		GeneratedAt:  time.Now(),
		PackageName:  "boards",
		FunctionName: "Crawl" + b.Name,
	}, nil
}

// scriptedValidator returns results[i] for the i-th call and repeats the last.
type scriptedValidator struct {
	results []domain.Diagnostics

	mu    sync.Mutex
	calls int
}

func (v *scriptedValidator) Validate(string, int) domain.Diagnostics {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := min(v.calls, len(v.results)-1)
	v.calls++
	return v.results[i]
}

func passing() *scriptedValidator {
	return &scriptedValidator{results: []domain.Diagnostics{nil}}
}

func failing() *scriptedValidator {
	return &scriptedValidator{results: []domain.Diagnostics{{{Message: "expected ';', found broken"}}}}
}

// scriptedExecutor returns results[i] for the i-th call and repeats the last.
type scriptedExecutor struct {
	results []domain.ExecutionResult
	delay   time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (e *scriptedExecutor) Execute(context.Context, domain.SynthesizedModule, domain.BoardSource) domain.ExecutionResult {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	i := int(e.calls.Add(1)) - 1
	return e.results[min(i, len(e.results)-1)]
}

type fakeRepairer struct {
	proposal domain.RepairProposal
	calls    atomic.Int32
}

func (r *fakeRepairer) AnalyzeAndPropose(context.Context, domain.BoardSource, domain.SynthesizedModule, []domain.StepError) domain.RepairProposal {
	r.calls.Add(1)
	return r.proposal
}

type memJournal struct {
	mu     sync.Mutex
	events []journal.Event
	err    error
}

func (j *memJournal) Append(_ context.Context, e journal.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	return j.err
}

func (j *memJournal) ofType(t journal.EventType) []journal.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []journal.Event
	for _, e := range j.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type countingMetrics struct {
	mu          sync.Mutex
	started     int
	finished    []domain.State
	transitions int
}

func (m *countingMetrics) RunStarted() {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
}

func (m *countingMetrics) RunFinished(state domain.State, _, _, _ int, _ time.Duration) {
	m.mu.Lock()
	m.finished = append(m.finished, state)
	m.mu.Unlock()
}

func (m *countingMetrics) Transition(domain.State, domain.State) {
	m.mu.Lock()
	m.transitions++
	m.mu.Unlock()
}

type fakeMarkup struct {
	body string
	err  error
}

func (f fakeMarkup) Markup(context.Context, string) (string, error) { return f.body, f.err }
