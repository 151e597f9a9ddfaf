// Package pipeline sequences analysis, synthesis, validation, live testing and
// both repair tiers into one bounded state machine per board.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/repair"
)

var (
	// ErrIllegalTransition means the controller tried an edge the state
	// machine does not have.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrMissingDependency is returned by New when a required stage is nil.
	ErrMissingDependency = errors.New("pipeline dependency is required")
)

// Analyzer derives selector candidates from markup.
type Analyzer interface {
	Analyze(markup string) domain.SelectorSet
}

// Refiner optionally improves analyzed candidates.
type Refiner interface {
	Refine(ctx context.Context, board domain.BoardSource, markup string, set domain.SelectorSet) domain.SelectorSet
}

// MarkupSource samples a board page when the submission carries no markup.
type MarkupSource interface {
	Markup(ctx context.Context, pageURL string) (string, error)
}

// Synthesizer renders a crawler module.
type Synthesizer interface {
	Synthesize(board domain.BoardSource, set domain.SelectorSet, errCtx *domain.ErrorContext) (domain.SynthesizedModule, error)
}

// Validator statically checks module source.
type Validator interface {
	Validate(source string, attempt int) domain.Diagnostics
}

// Executor runs a module against the live board.
type Executor interface {
	Execute(ctx context.Context, module domain.SynthesizedModule, board domain.BoardSource) domain.ExecutionResult
}

// Repairer diagnoses a failed live attempt.
type Repairer interface {
	AnalyzeAndPropose(ctx context.Context, board domain.BoardSource, module domain.SynthesizedModule, errs []domain.StepError) domain.RepairProposal
}

// Journal is the shared append-only log.
type Journal interface {
	Append(ctx context.Context, e journal.Event) error
}

// Metrics observes runs.
type Metrics interface {
	RunStarted()
	RunFinished(state domain.State, static, live, records int, elapsed time.Duration)
	Transition(from, to domain.State)
}

// Config holds both attempt budgets.
type Config struct {
	MaxStaticAttempts int `yaml:"max_static_attempts"`
	MaxLiveAttempts   int `yaml:"max_live_attempts"`
	Concurrency       int `yaml:"concurrency"`
}

// SetDefaults fills unset values. Budgets of zero are not representable in
// YAML; use a negative value to mean "no repair cycles".
func (c *Config) SetDefaults() {
	if c.MaxStaticAttempts == 0 {
		c.MaxStaticAttempts = 3
	}
	if c.MaxLiveAttempts == 0 {
		c.MaxLiveAttempts = 3
	}
	if c.MaxStaticAttempts < 0 {
		c.MaxStaticAttempts = 0
	}
	if c.MaxLiveAttempts < 0 {
		c.MaxLiveAttempts = 0
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

// Deps are the stages a Controller drives. Refiner, Markup, Journal, Metrics
// and Tracer are optional.
type Deps struct {
	Analyzer    Analyzer
	Refiner     Refiner
	Markup      MarkupSource
	Synthesizer Synthesizer
	Validator   Validator
	Executor    Executor
	Repairer    Repairer
	Journal     Journal
	Metrics     Metrics
	Tracer      trace.Tracer
	Log         logger.Logger
}

// Controller owns runs from ANALYZE to a terminal state.
type Controller struct {
	cfg    Config
	deps   Deps
	log    logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New returns a Controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	cfg.SetDefaults()
	switch {
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("%w: analyzer", ErrMissingDependency)
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("%w: synthesizer", ErrMissingDependency)
	case deps.Validator == nil:
		return nil, fmt.Errorf("%w: validator", ErrMissingDependency)
	case deps.Executor == nil:
		return nil, fmt.Errorf("%w: executor", ErrMissingDependency)
	case deps.Repairer == nil:
		return nil, fmt.Errorf("%w: repairer", ErrMissingDependency)
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Journal == nil {
		deps.Journal = journal.NewLog(log)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = defaultTracer()
	}
	return &Controller{cfg: cfg, deps: deps, log: log, tracer: tracer, now: time.Now}, nil
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// Run drives board to DONE_SUCCESS or DONE_EXHAUSTED. Failures of any stage
// end up in the Outcome; the error is non-nil only for an invalid board or a
// controller defect.
func (c *Controller) Run(ctx context.Context, board domain.BoardSource) (out *Outcome, err error) {
	if err = board.Validate(); err != nil {
		return nil, err
	}
	run := &Run{
		ID:                uuid.NewString(),
		Board:             board,
		State:             domain.StateAnalyze,
		MaxStaticAttempts: c.cfg.MaxStaticAttempts,
		MaxLiveAttempts:   c.cfg.MaxLiveAttempts,
		StartedAt:         c.now(),
	}
	ctx, span := c.runSpan(ctx, run)
	defer func() { endRun(span, out, err) }()

	log := c.log.With(logger.RunID(run.ID), logger.Board(board.Name))
	log.Info("Pipeline run started", logger.String("url", board.URL))
	if c.deps.Metrics != nil {
		c.deps.Metrics.RunStarted()
	}

	for !run.State.Terminal() {
		stepCtx, stepSpan := c.stepSpan(ctx, run)
		next := c.step(stepCtx, log, run)
		stepSpan.SetAttributes(attribute.String("state.next", string(next)))
		stepSpan.End()
		if err = c.transition(ctx, log, run, next); err != nil {
			return nil, err
		}
	}
	return c.finish(ctx, log, run), nil
}

// step performs the work of run.State and returns the next state.
func (c *Controller) step(ctx context.Context, log logger.Logger, run *Run) domain.State {
	switch run.State {
	case domain.StateAnalyze:
		run.Selectors = c.analyze(ctx, log, run.Board)
		return domain.StateSynthesize

	case domain.StateSynthesize:
		c.synthesize(ctx, log, run)
		return domain.StateStaticValidate

	case domain.StateStaticValidate:
		run.diagnostics = c.validate(ctx, run, run.StaticAttempt)
		if run.diagnostics.OK() {
			return domain.StateLiveTest
		}
		if run.StaticAttempt < run.MaxStaticAttempts {
			return domain.StateRepairStatic
		}
		log.Error("Static repair budget exhausted",
			logger.Attempt("static", run.StaticAttempt),
			logger.Strings("diagnostics", run.diagnostics.Messages()),
		)
		return domain.StateDoneExhausted

	case domain.StateRepairStatic:
		run.StaticAttempt++
		run.Selectors = repair.Rotate(run.Selectors)
		log.Debug("Rotated selector candidates",
			logger.Attempt("static", run.StaticAttempt),
			logger.String("rows_head", run.Selectors.Head(domain.FieldRows)),
		)
		return domain.StateSynthesize

	case domain.StateLiveTest:
		exec := c.liveTest(ctx, run)
		run.execution = &exec
		c.record(ctx, run, domain.HistoryEntry{Kind: domain.EntryExecution, Attempt: run.LiveAttempt, Execution: &exec})
		if exec.Succeeded() {
			return domain.StateDoneSuccess
		}
		if run.LiveAttempt < run.MaxLiveAttempts {
			return domain.StateAnalyzeError
		}
		log.Error("Live repair budget exhausted",
			logger.Attempt("live", run.LiveAttempt),
			logger.Int("errors", len(exec.Errors)),
		)
		return domain.StateDoneExhausted

	case domain.StateAnalyzeError:
		var errs []domain.StepError
		if run.execution != nil {
			errs = run.execution.Errors
		}
		var mod domain.SynthesizedModule
		if run.module != nil {
			mod = *run.module
		}
		proposal := c.deps.Repairer.AnalyzeAndPropose(ctx, run.Board, mod, errs)
		run.proposal = &proposal
		run.errCtx = repair.ErrorContext(run.LiveAttempt+1, errs, run.proposal)
		c.record(ctx, run, domain.HistoryEntry{Kind: domain.EntryProposal, Attempt: run.LiveAttempt, Proposal: run.proposal})
		return domain.StateRegenerate

	case domain.StateRegenerate:
		run.LiveAttempt++
		c.regenerate(ctx, log, run)
		return domain.StateLiveTest
	}

	// Unreachable for the states above; terminal states never reach step.
	return run.State
}

func (c *Controller) analyze(ctx context.Context, log logger.Logger, board domain.BoardSource) domain.SelectorSet {
	markup := board.SampledMarkup
	if !board.HasMarkup() && c.deps.Markup != nil {
		fetched, err := c.deps.Markup.Markup(ctx, board.URL)
		if err != nil {
			log.Warn("Could not sample board markup, analyzing defaults only", logger.Error(err))
		} else {
			markup = fetched
		}
	}
	set := c.deps.Analyzer.Analyze(markup)
	if c.deps.Refiner != nil {
		set = c.deps.Refiner.Refine(ctx, board, markup, set)
	}
	return set
}

func (c *Controller) synthesize(ctx context.Context, log logger.Logger, run *Run) {
	mod, err := c.deps.Synthesizer.Synthesize(run.Board, run.Selectors, run.errCtx)
	run.synthErr = err
	if err != nil {
		log.Warn("Synthesis failed", logger.Error(err))
		return
	}
	run.module = &mod
	c.record(ctx, run, domain.HistoryEntry{Kind: domain.EntryModule, Attempt: run.StaticAttempt, Module: &mod})
}

// validate checks the current module, or turns a synthesis failure into a diagnostic.
func (c *Controller) validate(ctx context.Context, run *Run, attempt int) domain.Diagnostics {
	var diags domain.Diagnostics
	switch {
	case run.synthErr != nil:
		diags = domain.Diagnostics{{Message: run.synthErr.Error(), Attempt: attempt}}
	case run.module == nil:
		diags = domain.Diagnostics{{Message: "no module synthesized", Attempt: attempt}}
	default:
		diags = c.deps.Validator.Validate(run.module.SourceText, attempt)
	}
	if diags == nil {
		diags = domain.Diagnostics{}
	}
	c.record(ctx, run, domain.HistoryEntry{Kind: domain.EntryDiagnostics, Attempt: attempt, Diagnostics: diags})
	return diags
}

// liveTest executes the current module. A regenerated module that failed
// validation is reported as a failed attempt without being executed.
func (c *Controller) liveTest(ctx context.Context, run *Run) domain.ExecutionResult {
	if !run.diagnostics.OK() {
		return domain.ExecutionResult{Fatal: true, Errors: diagnosticErrors(run.diagnostics)}
	}
	return c.deps.Executor.Execute(ctx, *run.module, run.Board)
}

// regenerate resynthesizes with the error context, unless the proposal says
// the module itself is fine, in which case the same module is retried.
func (c *Controller) regenerate(ctx context.Context, log logger.Logger, run *Run) {
	p := run.proposal
	if p != nil && !p.RegenerateNeeded && len(p.SuggestedSelectors) == 0 && run.module != nil {
		log.Debug("Proposal keeps the module, retrying as is", logger.Attempt("live", run.LiveAttempt))
		run.diagnostics = domain.Diagnostics{}
		c.append(ctx, journal.Event{
			RunID:   run.ID,
			Board:   run.Board.Name,
			Type:    journal.EventRetry,
			To:      domain.StateLiveTest,
			Summary: fmt.Sprintf("live=%d retry of module %s without regeneration", run.LiveAttempt, run.module.ID),
		})
		return
	}
	run.Selectors = repair.ApplySuggestions(run.Selectors, p)

	mod, err := c.deps.Synthesizer.Synthesize(run.Board, run.Selectors, run.errCtx)
	if err != nil {
		log.Warn("Regeneration failed", logger.Error(err))
		run.diagnostics = domain.Diagnostics{{Message: err.Error(), Attempt: run.StaticAttempt}}
		c.record(ctx, run, domain.HistoryEntry{Kind: domain.EntryDiagnostics, Attempt: run.LiveAttempt, Diagnostics: run.diagnostics})
		return
	}
	run.module = &mod
	run.synthErr = nil
	c.record(ctx, run, domain.HistoryEntry{Kind: domain.EntryModule, Attempt: run.LiveAttempt, Module: &mod})

	run.diagnostics = c.deps.Validator.Validate(mod.SourceText, run.StaticAttempt)
	if run.diagnostics == nil {
		run.diagnostics = domain.Diagnostics{}
	}
	c.record(ctx, run, domain.HistoryEntry{Kind: domain.EntryDiagnostics, Attempt: run.LiveAttempt, Diagnostics: run.diagnostics})
}

func (c *Controller) transition(ctx context.Context, log logger.Logger, run *Run, to domain.State) error {
	from := run.State
	if !domain.CanTransition(from, to) {
		log.Error("Illegal transition", logger.State("from", string(from)), logger.State("to", string(to)))
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	run.State = to
	run.Transitions = append(run.Transitions, Transition{From: from, To: to, At: c.now()})

	log.Debug("State transition",
		logger.State("from", string(from)),
		logger.State("to", string(to)),
		logger.Attempt("static", run.StaticAttempt),
		logger.Attempt("live", run.LiveAttempt),
	)
	if c.deps.Metrics != nil {
		c.deps.Metrics.Transition(from, to)
	}
	c.append(ctx, journal.Event{RunID: run.ID, Board: run.Board.Name, Type: journal.EventTransition, From: from, To: to})
	return nil
}

func (c *Controller) record(ctx context.Context, run *Run, e domain.HistoryEntry) {
	e.State = run.State
	e.At = c.now()
	run.History = append(run.History, e)
	c.append(ctx, journal.Event{
		RunID:   run.ID,
		Board:   run.Board.Name,
		Type:    journal.EventHistory,
		Summary: e.Summary(),
		Entry:   &e,
	})
}

func (c *Controller) append(ctx context.Context, e journal.Event) {
	if err := c.deps.Journal.Append(ctx, e); err != nil {
		c.log.Warn("Journal append failed", logger.RunID(e.RunID), logger.Error(err))
	}
}

func (c *Controller) finish(ctx context.Context, log logger.Logger, run *Run) *Outcome {
	run.FinishedAt = c.now()
	out := &Outcome{
		RunID:       run.ID,
		Board:       run.Board.Name,
		State:       run.State,
		Success:     run.State == domain.StateDoneSuccess,
		Attempts:    Attempts{Static: run.StaticAttempt, Live: run.LiveAttempt},
		History:     append([]domain.HistoryEntry(nil), run.History...),
		Transitions: append([]Transition(nil), run.Transitions...),
		Duration:    run.FinishedAt.Sub(run.StartedAt),
	}
	if out.Success {
		out.FinalModule = run.module
		out.Records = run.execution.Records
	} else {
		out.LastModule = run.module
		if run.execution != nil {
			out.RemainingErrors = run.execution.Errors
		} else {
			out.RemainingErrors = diagnosticErrors(run.diagnostics)
		}
	}
	run.outcome = out

	if c.deps.Metrics != nil {
		c.deps.Metrics.RunFinished(run.State, run.StaticAttempt, run.LiveAttempt, len(out.Records), out.Duration)
	}
	c.append(ctx, journal.Event{
		RunID:   run.ID,
		Board:   run.Board.Name,
		Type:    journal.EventOutcome,
		To:      run.State,
		Summary: fmt.Sprintf("static=%d live=%d records=%d", run.StaticAttempt, run.LiveAttempt, len(out.Records)),
	})
	log.Info("Pipeline run finished",
		logger.State("state", string(run.State)),
		logger.Attempt("static", run.StaticAttempt),
		logger.Attempt("live", run.LiveAttempt),
		logger.Int("records", len(out.Records)),
		logger.Int("remaining_errors", len(out.RemainingErrors)),
		logger.Duration("elapsed", out.Duration),
	)
	return out
}
