// Package service exposes board synthesis to the CLI and HTTP surfaces: it
// runs the pipeline and persists the module each run ends with.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/analyzer"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/storage"
)

var (
	// ErrStoreDisabled is returned by module lookups when no database is configured.
	ErrStoreDisabled = errors.New("module store is not configured")
	// ErrJournalDisabled is returned by Recent when no stream is configured.
	ErrJournalDisabled = errors.New("journal stream is not configured")
)

// Runner drives pipeline runs.
type Runner interface {
	Run(ctx context.Context, board domain.BoardSource) (*pipeline.Outcome, error)
	RunAll(ctx context.Context, boards []domain.BoardSource, concurrency int) ([]pipeline.BatchResult, error)
}

// ModuleStore persists modules.
type ModuleStore interface {
	Save(ctx context.Context, board domain.BoardSource, module domain.SynthesizedModule, outcome *pipeline.Outcome) error
	Get(ctx context.Context, boardName string) (*storage.StoredModule, error)
	List(ctx context.Context, successOnly bool, limit int) ([]*storage.StoredModule, error)
}

// EventSource reads back journal events.
type EventSource interface {
	Recent(ctx context.Context, n int64) ([]journal.Event, error)
}

// Result is a run outcome plus whether its module was persisted.
type Result struct {
	*pipeline.Outcome
	Stored bool `json:"stored"`
}

// Options are the collaborators of a Service. Store, Events and Markup are
// optional.
type Options struct {
	Runner   Runner
	Analyzer *analyzer.Analyzer
	Markup   pipeline.MarkupSource
	Store    ModuleStore
	Events   EventSource
	Log      logger.Logger
	Closers  []func() error
}

// Service is the board synthesis entry point.
type Service struct {
	runner   Runner
	analyzer *analyzer.Analyzer
	markup   pipeline.MarkupSource
	store    ModuleStore
	events   EventSource
	log      logger.Logger
	closers  []func() error
}

// New returns a Service. Runner is required.
func New(opts Options) (*Service, error) {
	if opts.Runner == nil {
		return nil, errors.New("service: runner is required")
	}
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}
	a := opts.Analyzer
	if a == nil {
		a = analyzer.New(log)
	}
	return &Service{
		runner:   opts.Runner,
		analyzer: a,
		markup:   opts.Markup,
		store:    opts.Store,
		events:   opts.Events,
		log:      log,
		closers:  opts.Closers,
	}, nil
}

// Synthesize runs one board and persists the module it ended with. A store
// failure is logged and reported through Result.Stored; the outcome is
// still returned.
func (s *Service) Synthesize(ctx context.Context, board domain.BoardSource) (*Result, error) {
	out, err := s.runner.Run(ctx, board)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: out, Stored: s.persist(ctx, board, out)}, nil
}

// SynthesizeAll runs boards concurrently and persists each outcome.
func (s *Service) SynthesizeAll(ctx context.Context, boards []domain.BoardSource, concurrency int) ([]pipeline.BatchResult, error) {
	results, err := s.runner.RunAll(ctx, boards, concurrency)
	for _, r := range results {
		if r.Outcome != nil {
			s.persist(ctx, r.Board, r.Outcome)
		}
	}
	return results, err
}

func (s *Service) persist(ctx context.Context, board domain.BoardSource, out *pipeline.Outcome) bool {
	if s.store == nil {
		return false
	}
	module := out.FinalModule
	if module == nil {
		module = out.LastModule
	}
	if module == nil {
		return false
	}
	if err := s.store.Save(ctx, board, *module, out); err != nil {
		s.log.Error("Failed to store module",
			logger.Board(board.Name),
			logger.RunID(out.RunID),
			logger.Error(err),
		)
		return false
	}
	return true
}

// Analyze reports selector candidates for a board without synthesizing.
// Markup is fetched when the board carries none.
func (s *Service) Analyze(ctx context.Context, board domain.BoardSource) (analyzer.Report, error) {
	if err := board.Validate(); err != nil {
		return analyzer.Report{}, err
	}
	markup := board.SampledMarkup
	if !board.HasMarkup() {
		if s.markup == nil {
			return analyzer.Report{}, fmt.Errorf("%w: no markup and no fetcher", domain.ErrInvalidBoard)
		}
		var err error
		if markup, err = s.markup.Markup(ctx, board.URL); err != nil {
			return analyzer.Report{}, fmt.Errorf("sample %s: %w", board.URL, err)
		}
	}
	return s.analyzer.Inspect(markup), nil
}

// Module returns the stored module for a board.
func (s *Service) Module(ctx context.Context, boardName string) (*storage.StoredModule, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.Get(ctx, boardName)
}

// Modules lists stored modules.
func (s *Service) Modules(ctx context.Context, successOnly bool, limit int) ([]*storage.StoredModule, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.List(ctx, successOnly, limit)
}

// Recent returns the newest journal events.
func (s *Service) Recent(ctx context.Context, n int64) ([]journal.Event, error) {
	if s.events == nil {
		return nil, ErrJournalDisabled
	}
	return s.events.Recent(ctx, n)
}

// Close releases connections opened by Build.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
