// Package executor runs synthesized crawlers against a live page and
// classifies what went wrong.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/browser"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/validate"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

// Step names used in StepError.Step outside per-row failures.
const (
	StepLoad       = "load-module"
	StepOpen       = "open-browser"
	StepCrawl      = "crawl"
	StepDetectRows = "detect-rows"
)

// closeGrace bounds the wait for a timed-out crawler once its session is closed.
const closeGrace = 2 * time.Second

var (
	// ErrNoFunction is returned by Load when the module's entry point is missing.
	ErrNoFunction = errors.New("crawler function not found")
	// ErrSignature is returned by Load when the entry point has the wrong type.
	ErrSignature = errors.New("crawler function has an unexpected signature")
)

// CrawlFunc is the entry point every synthesized module exports.
type CrawlFunc func(ctx context.Context, page scrape.Page, opts scrape.Options) (*scrape.Result, error)

// Config bounds one live attempt.
type Config struct {
	BatchSize        int           `yaml:"crawl_batch_size"`
	FollowPagination bool          `yaml:"follow_pagination"`
	MaxPages         int           `yaml:"max_pages"`
	FetchDetail      bool          `yaml:"fetch_detail"`
	RowTimeout       time.Duration `yaml:"row_timeout"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = scrape.DefaultBatchSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 1
	}
	if c.RowTimeout <= 0 {
		c.RowTimeout = 5 * time.Second
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 2 * time.Minute
	}
}

func (c Config) options() scrape.Options {
	return scrape.Options{
		BatchSize:        c.BatchSize,
		FollowPagination: c.FollowPagination,
		MaxPages:         c.MaxPages,
		FetchDetail:      c.FetchDetail,
		RowTimeout:       c.RowTimeout,
	}
}

// Executor loads modules into a sandboxed interpreter and runs them.
type Executor struct {
	driver browser.Driver
	cfg    Config
	log    logger.Logger
}

// New returns an Executor that opens pages from driver.
func New(driver browser.Driver, cfg Config, log logger.Logger) *Executor {
	cfg.SetDefaults()
	return &Executor{driver: driver, cfg: cfg, log: log}
}

// Load evaluates the module source and returns its entry point.
func Load(module domain.SynthesizedModule) (fn CrawlFunc, err error) {
	defer func() {
		if r := recover(); r != nil {
			fn, err = nil, scrape.Recovered(r)
		}
	}()

	i, err := validate.NewInterpreter()
	if err != nil {
		return nil, fmt.Errorf("interpreter: %w", err)
	}
	if _, err = i.Eval(module.SourceText); err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	v, err := i.Eval(module.Symbol())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoFunction, module.Symbol(), err)
	}
	f, ok := v.Interface().(func(context.Context, scrape.Page, scrape.Options) (*scrape.Result, error))
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrSignature, module.Symbol(), v.Type())
	}
	return f, nil
}

// Execute runs module once against board. It never returns an error: every
// failure is reported as a classified StepError in the result.
func (e *Executor) Execute(ctx context.Context, module domain.SynthesizedModule, board domain.BoardSource) domain.ExecutionResult {
	log := e.log.With(logger.Board(board.Name), logger.String("module_id", module.ID))
	start := time.Now()

	fn, err := Load(module)
	if err != nil {
		log.Warn("Module could not be loaded", logger.Error(err))
		return fatal(StepLoad, domain.KindFatalExecution, err)
	}

	session, err := e.driver.Open(ctx)
	if err != nil {
		log.Warn("Browser session unavailable", logger.String("driver", e.driver.Name()), logger.Error(err))
		return fatal(StepOpen, domain.KindExternalService, err)
	}
	closeSession := sync.OnceValue(session.Close)
	defer func() {
		if closeErr := closeSession(); closeErr != nil {
			log.Debug("Closing browser session failed", logger.Error(closeErr))
		}
	}()

	res, runErr := e.run(ctx, fn, session, closeSession)
	out := classify(res, runErr, module)

	for _, se := range out.Errors {
		log.Warn("Live attempt step failed",
			logger.String("step", se.Step),
			logger.String("kind", string(se.Kind)),
			logger.String("error", se.Error),
		)
	}
	log.Info("Live attempt finished",
		logger.Int("records", len(out.Records)),
		logger.Int("errors", len(out.Errors)),
		logger.Bool("fatal", out.Fatal),
		logger.Duration("elapsed", time.Since(start)),
	)
	return out
}

type runResult struct {
	res *scrape.Result
	err error
}

// run calls fn on its own goroutine so a crawler that ignores ctx cannot hold
// the attempt past RunTimeout. On timeout the session is closed, which fails
// any page call the crawler is blocked in, and the goroutine gets closeGrace
// to return. A crawler that blocks outside the page is abandoned.
func (e *Executor) run(ctx context.Context, fn CrawlFunc, page scrape.Page, closeSession func() error) (*scrape.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		var out runResult
		defer func() {
			if r := recover(); r != nil {
				out.err = scrape.Recovered(r)
			}
			done <- out
		}()
		out.res, out.err = fn(ctx, page, e.cfg.options())
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
	}

	if err := closeSession(); err != nil {
		e.log.Debug("Closing browser session after timeout failed", logger.Error(err))
	}
	grace := time.NewTimer(closeGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		e.log.Warn("Crawler still running after its session closed, abandoning it")
	}
	return nil, fmt.Errorf("crawl aborted: %w", ctx.Err())
}

func classify(res *scrape.Result, runErr error, module domain.SynthesizedModule) domain.ExecutionResult {
	out := domain.ExecutionResult{}
	if res != nil {
		for _, rec := range res.Records {
			out.Records = append(out.Records, toRecord(rec))
		}
		for _, w := range res.Warnings {
			out.Errors = append(out.Errors, domain.StepError{Step: w.Step, Kind: domain.KindRowExtraction, Error: w.Err})
		}
	}
	if runErr != nil {
		out.Fatal = true
		out.Errors = append(out.Errors, domain.StepError{Step: StepCrawl, Kind: domain.KindFatalExecution, Error: runErr.Error()})
		return out
	}
	if len(out.Records) == 0 {
		out.Errors = append(out.Errors, domain.StepError{
			Step:  StepDetectRows,
			Kind:  domain.KindSelectorMismatch,
			Error: fmt.Sprintf("no records collected; row candidates start with %q", module.Selectors.Head(domain.FieldRows)),
		})
	}
	return out
}

func fatal(step string, kind domain.ErrorKind, err error) domain.ExecutionResult {
	return domain.ExecutionResult{
		Fatal:  true,
		Errors: []domain.StepError{{Step: step, Kind: kind, Error: err.Error()}},
	}
}

// toRecord copies r into a domain record. Free text is recomposed to NFC since
// some boards serve Hangul as decomposed jamo.
func toRecord(r scrape.Record) domain.Record {
	var meta map[string]string
	if len(r.Meta) > 0 {
		meta = make(map[string]string, len(r.Meta))
		for k, v := range r.Meta {
			if v != "" {
				meta[k] = v
			}
		}
	}
	return domain.Record{
		Title:         norm.NFC.String(r.Title),
		URL:           r.URL,
		Organization:  norm.NFC.String(r.Organization),
		Location:      norm.NFC.String(r.Location),
		PostedDate:    r.PostedDate,
		DetailContent: norm.NFC.String(r.DetailContent),
		AttachmentURL: r.AttachmentURL,
		Meta:          meta,
	}
}
