// Package scrape is the runtime surface synthesized board crawlers are written
// against. A crawler receives a Page already bound to a browser session and
// returns a Result.
//
// The package is also exported to the yaegi interpreter through Symbols, so
// everything a crawler may call must be listed there.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ImportPath is the path synthesized crawlers import this package by.
const ImportPath = "github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"

// DefaultBatchSize is the row budget used when Options.BatchSize is unset.
const DefaultBatchSize = 10

var (
	ErrMissingTitle = errors.New("row has no title")
	ErrMissingLink  = errors.New("row has no link")
)

// Page is a navigable browser tab.
type Page interface {
	// Goto navigates and waits for the document to load.
	Goto(ctx context.Context, url string) error
	// URL is the address of the currently loaded document.
	URL() string
	// FindAll returns every element matching selector, without waiting.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// WaitFor blocks until selector matches at least one element.
	WaitFor(ctx context.Context, selector string) error
	// Next activates the first element matching selector to move to the next
	// listing page. It reports false when nothing matched.
	Next(ctx context.Context, selector string) (bool, error)
	// DetailText loads url out of band and returns its readable text.
	DetailText(ctx context.Context, url string) (string, error)
}

// Element is a node inside a Page.
type Element interface {
	Text() (string, error)
	// Attr returns "" when the attribute is absent.
	Attr(name string) (string, error)
	FindAll(selector string) ([]Element, error)
}

// Options are supplied by the caller running a crawler.
type Options struct {
	BatchSize        int
	FollowPagination bool
	MaxPages         int
	FetchDetail      bool
	RowTimeout       time.Duration
}

// Normalize fills zero values.
func (o Options) Normalize() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 1
	}
	if o.RowTimeout <= 0 {
		o.RowTimeout = 5 * time.Second
	}
	return o
}

// Record is one extracted board post.
type Record struct {
	Title         string
	URL           string
	Organization  string
	Location      string
	PostedDate    string
	DetailContent string
	AttachmentURL string
	Meta          map[string]string
}

// Warning is a row-level failure that did not stop the batch.
type Warning struct {
	Step string
	Err  string
}

func (w Warning) String() string { return w.Step + ": " + w.Err }

// Result collects records and warnings from one crawl.
type Result struct {
	Records  []Record
	Warnings []Warning
}

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{}
}

// Add appends rec.
func (r *Result) Add(rec Record) {
	r.Records = append(r.Records, rec)
}

// Warn records a skipped row or step.
func (r *Result) Warn(step string, err error) {
	if err == nil {
		return
	}
	r.Warnings = append(r.Warnings, Warning{Step: step, Err: err.Error()})
}

// Recovered converts a recovered panic value into an error.
func Recovered(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
