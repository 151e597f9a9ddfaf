package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/llm"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/repair"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/synth"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/validate"
)

type stages struct {
	analyzer  *fakeAnalyzer
	synth     pipeline.Synthesizer
	validator pipeline.Validator
	executor  *scriptedExecutor
	repairer  pipeline.Repairer
	journal   *memJournal
	metrics   *countingMetrics
	markup    pipeline.MarkupSource
}

func newStages() *stages {
	return &stages{
		analyzer:  &fakeAnalyzer{set: domain.DefaultSelectors()},
		synth:     &fakeSynth{},
		validator: passing(),
		executor:  &scriptedExecutor{results: []domain.ExecutionResult{collected}},
		repairer:  &fakeRepairer{proposal: domain.RepairProposal{RootCause: "rows moved", RegenerateNeeded: true}},
		journal:   &memJournal{},
		metrics:   &countingMetrics{},
	}
}

func (s *stages) controller(t *testing.T, cfg pipeline.Config) *pipeline.Controller {
	t.Helper()
	c, err := pipeline.New(cfg, pipeline.Deps{
		Analyzer:    s.analyzer,
		Markup:      s.markup,
		Synthesizer: s.synth,
		Validator:   s.validator,
		Executor:    s.executor,
		Repairer:    s.repairer,
		Journal:     s.journal,
		Metrics:     s.metrics,
		Log:         logger.NewNop(),
	})
	require.NoError(t, err)
	return c
}

func states(out *pipeline.Outcome) []domain.State {
	got := make([]domain.State, 0, len(out.Transitions))
	for _, tr := range out.Transitions {
		got = append(got, tr.To)
	}
	return got
}

func count(out *pipeline.Outcome, s domain.State) int {
	n := 0
	for _, tr := range out.Transitions {
		if tr.To == s {
			n++
		}
	}
	return n
}

func assertLegal(t *testing.T, out *pipeline.Outcome) {
	t.Helper()
	from := domain.StateAnalyze
	for i, tr := range out.Transitions {
		assert.Equal(t, from, tr.From, "transition %d starts where the last ended", i)
		assert.True(t, domain.CanTransition(tr.From, tr.To), "illegal edge %s -> %s", tr.From, tr.To)
		if i < len(out.Transitions)-1 {
			assert.False(t, tr.To.Terminal(), "transition after terminal state")
		}
		from = tr.To
	}
	assert.True(t, from.Terminal())
	assert.Equal(t, from, out.State)
}

func TestRun_SucceedsFirstTime(t *testing.T) {
	t.Parallel()

	s := newStages()
	out, err := s.controller(t, pipeline.Config{}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, []domain.State{
		domain.StateSynthesize,
		domain.StateStaticValidate,
		domain.StateLiveTest,
		domain.StateDoneSuccess,
	}, states(out))
	assert.Equal(t, pipeline.Attempts{}, out.Attempts)
	require.NotNil(t, out.FinalModule)
	assert.Nil(t, out.LastModule)
	assert.Equal(t, collected.Records, out.Records)
	assert.Empty(t, out.RemainingErrors)
	assert.NotEmpty(t, out.RunID)
	assertLegal(t, out)

	kinds := make([]domain.EntryKind, 0, len(out.History))
	for _, h := range out.History {
		kinds = append(kinds, h.Kind)
	}
	assert.Equal(t, []domain.EntryKind{domain.EntryModule, domain.EntryDiagnostics, domain.EntryExecution}, kinds)
	assert.Equal(t, []string{board.SampledMarkup}, s.analyzer.markup)
}

func TestRun_StaticRepairRotatesBadSelector(t *testing.T) {
	t.Parallel()

	s := newStages()
	set := domain.DefaultSelectors()
	set.Rows = []string{"tr`broken", "table tr"}
	s.analyzer.set = set
	s.synth = synth.New(logger.NewNop())
	s.validator = validate.New(logger.NewNop())

	out, err := s.controller(t, pipeline.Config{MaxStaticAttempts: 3}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Attempts.Static)
	assert.Equal(t, 1, count(out, domain.StateRepairStatic))
	assertLegal(t, out)

	var diags []domain.Diagnostics
	for _, h := range out.History {
		if h.Kind == domain.EntryDiagnostics {
			diags = append(diags, h.Diagnostics)
		}
	}
	require.Len(t, diags, 2)
	assert.False(t, diags[0].OK())
	assert.Equal(t, 0, diags[0][0].Attempt)
	assert.True(t, diags[1].OK())

	require.NotNil(t, out.FinalModule)
	assert.Equal(t, []string{"table tr", "tr`broken"}, out.FinalModule.Selectors.Rows)
	assert.Contains(t, out.FinalModule.SourceText, "[]string{`table tr`")
}

func TestRun_StaticExhaustion(t *testing.T) {
	t.Parallel()

	s := newStages()
	v := failing()
	s.validator = v

	out, err := s.controller(t, pipeline.Config{MaxStaticAttempts: 3}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, domain.StateDoneExhausted, out.State)
	assert.Equal(t, 3, out.Attempts.Static)
	assert.Equal(t, 0, out.Attempts.Live)
	assert.Equal(t, 3, count(out, domain.StateRepairStatic))
	assert.Equal(t, 4, v.calls)
	assert.Zero(t, s.executor.calls.Load())
	require.NotEmpty(t, out.RemainingErrors)
	assert.Equal(t, domain.KindStaticCompile, out.RemainingErrors[0].Kind)
	assert.Nil(t, out.FinalModule)
	assert.NotNil(t, out.LastModule)
	assertLegal(t, out)

	// Each rotation hands the synthesizer a different head row selector.
	sets := s.synth.(*fakeSynth).sets
	require.Len(t, sets, 4)
	assert.Equal(t, "table tbody tr", sets[0].Rows[0])
	assert.Equal(t, "table tr", sets[1].Rows[0])
	assert.Equal(t, "ul.board-list li", sets[2].Rows[0])
}

func TestRun_LiveExhaustion(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows}}
	rep := s.repairer.(*fakeRepairer)

	out, err := s.controller(t, pipeline.Config{MaxLiveAttempts: 3}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, domain.StateDoneExhausted, out.State)
	assert.Equal(t, 3, out.Attempts.Live)
	assert.Equal(t, 3, count(out, domain.StateRegenerate))
	assert.Equal(t, 3, count(out, domain.StateAnalyzeError))
	assert.Equal(t, int32(4), s.executor.calls.Load())
	assert.Equal(t, int32(3), rep.calls.Load())
	require.NotEmpty(t, out.RemainingErrors)
	assert.Equal(t, domain.KindSelectorMismatch, out.RemainingErrors[0].Kind)
	assertLegal(t, out)

	// Every regeneration carries the failed attempt's errors and proposal.
	fs := s.synth.(*fakeSynth)
	require.Len(t, fs.contexts, 4)
	assert.Nil(t, fs.contexts[0])
	for i, errCtx := range fs.contexts[1:] {
		require.NotNil(t, errCtx)
		assert.Equal(t, i+1, errCtx.Attempt)
		assert.True(t, errCtx.Has(domain.KindSelectorMismatch))
		require.NotNil(t, errCtx.Proposal)
		assert.Equal(t, "rows moved", errCtx.Proposal.RootCause)
	}
}

func TestRun_MalformedProposalStillRegenerates(t *testing.T) {
	t.Parallel()

	prose := "The board seems to load its rows with JavaScript after a delay."
	client := llm.ClientFunc(func(context.Context, string, string) (string, error) { return prose, nil })

	s := newStages()
	s.repairer = repair.NewLLMRepairer(client, logger.NewNop())
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows, collected}}

	out, err := s.controller(t, pipeline.Config{}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Attempts.Live)
	assert.Equal(t, []domain.State{
		domain.StateSynthesize,
		domain.StateStaticValidate,
		domain.StateLiveTest,
		domain.StateAnalyzeError,
		domain.StateRegenerate,
		domain.StateLiveTest,
		domain.StateDoneSuccess,
	}, states(out))

	var proposal *domain.RepairProposal
	for _, h := range out.History {
		if h.Kind == domain.EntryProposal {
			proposal = h.Proposal
		}
	}
	require.NotNil(t, proposal)
	assert.Equal(t, prose, proposal.RootCause)
	assert.True(t, proposal.RegenerateNeeded)

	fs := s.synth.(*fakeSynth)
	require.Len(t, fs.contexts, 2)
	assert.Contains(t, fs.contexts[1].Text(), prose)
}

func TestRun_SuggestedSelectorsReachSynthesizer(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows, collected}}
	s.repairer = &fakeRepairer{proposal: domain.RepairProposal{
		RootCause:          "list moved",
		RegenerateNeeded:   true,
		SuggestedSelectors: map[string][]string{"rows": {"#bbsList tr"}},
	}}

	out, err := s.controller(t, pipeline.Config{}).Run(context.Background(), board)
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Equal(t, "#bbsList tr", out.FinalModule.Selectors.Rows[0])
}

func TestRun_ProposalWithoutRegenerationRetriesModule(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows, collected}}
	s.repairer = &fakeRepairer{proposal: domain.RepairProposal{RootCause: "transient timeout"}}

	out, err := s.controller(t, pipeline.Config{}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Attempts.Live)
	assert.Equal(t, 1, s.synth.(*fakeSynth).calls)

	retries := s.journal.ofType(journal.EventRetry)
	require.Len(t, retries, 1)
	assert.Equal(t, out.RunID, retries[0].RunID)
	assert.Contains(t, retries[0].Summary, "without regeneration")
	assert.Nil(t, retries[0].Entry)
}

func TestRun_InvalidRegenerationIsNotExecuted(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows}}
	s.validator = &scriptedValidator{results: []domain.Diagnostics{
		nil,
		{{Message: "undefined: rowz"}},
	}}

	out, err := s.controller(t, pipeline.Config{MaxLiveAttempts: 1}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.Equal(t, domain.StateDoneExhausted, out.State)
	assert.Equal(t, 1, out.Attempts.Live)
	assert.Equal(t, int32(1), s.executor.calls.Load())
	require.Len(t, out.RemainingErrors, 1)
	assert.Equal(t, domain.KindStaticCompile, out.RemainingErrors[0].Kind)
	assert.Equal(t, "undefined: rowz", out.RemainingErrors[0].Error)
	assertLegal(t, out)
}

func TestRun_BudgetBounds(t *testing.T) {
	t.Parallel()

	for static := -1; static <= 3; static++ {
		for live := -1; live <= 3; live++ {
			t.Run(fmt.Sprintf("static=%d/live=%d", static, live), func(t *testing.T) {
				t.Parallel()

				// Static failures on the first call only so both tiers are exercised.
				s := newStages()
				s.validator = &scriptedValidator{results: []domain.Diagnostics{{{Message: "bad"}}, nil}}
				s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows}}

				c := s.controller(t, pipeline.Config{MaxStaticAttempts: static, MaxLiveAttempts: live})
				out, err := c.Run(context.Background(), board)
				require.NoError(t, err)

				maxStatic, maxLive := c.Config().MaxStaticAttempts, c.Config().MaxLiveAttempts
				assert.LessOrEqual(t, count(out, domain.StateRepairStatic), maxStatic)
				assert.LessOrEqual(t, count(out, domain.StateRegenerate), maxLive)
				assert.LessOrEqual(t, out.Attempts.Static, maxStatic)
				assert.LessOrEqual(t, out.Attempts.Live, maxLive)
				assert.Equal(t, domain.StateDoneExhausted, out.State)
				assertLegal(t, out)
			})
		}
	}
}

func TestRun_ZeroBudgetsExhaustImmediately(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows}}

	out, err := s.controller(t, pipeline.Config{MaxStaticAttempts: -1, MaxLiveAttempts: -1}).Run(context.Background(), board)
	require.NoError(t, err)

	assert.Equal(t, domain.StateDoneExhausted, out.State)
	assert.Equal(t, pipeline.Attempts{}, out.Attempts)
	assert.Equal(t, int32(1), s.executor.calls.Load())
}

func TestRun_FetchesMarkupWhenNotSampled(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.markup = fakeMarkup{body: "<ul><li>fetched</li></ul>"}
	b := board
	b.SampledMarkup = ""

	_, err := s.controller(t, pipeline.Config{}).Run(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, []string{"<ul><li>fetched</li></ul>"}, s.analyzer.markup)

	s = newStages()
	s.markup = fakeMarkup{err: errors.New("status 503")}
	out, err := s.controller(t, pipeline.Config{}).Run(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []string{""}, s.analyzer.markup)
}

func TestRun_JournalAndMetrics(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{zeroRows, collected}}
	s.journal.err = errors.New("redis down")

	out, err := s.controller(t, pipeline.Config{}).Run(context.Background(), board)
	require.NoError(t, err, "journal failures never fail a run")

	transitions := s.journal.ofType(journal.EventTransition)
	assert.Len(t, transitions, len(out.Transitions))
	assert.Len(t, s.journal.ofType(journal.EventHistory), len(out.History))

	outcomes := s.journal.ofType(journal.EventOutcome)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StateDoneSuccess, outcomes[0].To)
	assert.Equal(t, out.RunID, outcomes[0].RunID)

	assert.Equal(t, 1, s.metrics.started)
	assert.Equal(t, []domain.State{domain.StateDoneSuccess}, s.metrics.finished)
	assert.Equal(t, len(out.Transitions), s.metrics.transitions)
}

func TestRun_InvalidBoard(t *testing.T) {
	t.Parallel()

	out, err := newStages().controller(t, pipeline.Config{}).Run(context.Background(), domain.BoardSource{Name: "x", URL: "/relative"})
	require.ErrorIs(t, err, domain.ErrInvalidBoard)
	assert.Nil(t, out)
}

func TestNew_RequiresStages(t *testing.T) {
	t.Parallel()

	_, err := pipeline.New(pipeline.Config{}, pipeline.Deps{Analyzer: &fakeAnalyzer{}})
	require.ErrorIs(t, err, pipeline.ErrMissingDependency)
	assert.Contains(t, err.Error(), "synthesizer")
}

func TestRunAll_BoundedAndOrdered(t *testing.T) {
	t.Parallel()

	s := newStages()
	s.executor = &scriptedExecutor{results: []domain.ExecutionResult{collected}, delay: 20 * time.Millisecond}
	c := s.controller(t, pipeline.Config{Concurrency: 2})

	boards := make([]domain.BoardSource, 0, 6)
	for i := range 5 {
		b := board
		b.Name = fmt.Sprintf("board-%d", i)
		boards = append(boards, b)
	}
	boards = append(boards, domain.BoardSource{Name: "broken", URL: "ftp://nope"})

	results, err := c.RunAll(context.Background(), boards, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidBoard)
	assert.Contains(t, err.Error(), `board "broken"`)

	require.Len(t, results, len(boards))
	for i, r := range results[:5] {
		assert.Equal(t, boards[i].Name, r.Board.Name)
		require.NoError(t, r.Err)
		assert.True(t, r.Outcome.Success)
	}
	assert.Nil(t, results[5].Outcome)
	assert.LessOrEqual(t, s.executor.maxSeen.Load(), int32(2))
	assert.Equal(t, int32(5), s.executor.calls.Load())
}
