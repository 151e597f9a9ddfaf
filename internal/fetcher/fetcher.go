// Package fetcher downloads board pages over plain HTTP with colly. It samples
// markup for the analyzer and backs the static browser driver.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (compatible; boardsynth/1.0)"
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 8 << 20
)

// ErrEmptyBody is returned when a page answered without content.
var ErrEmptyBody = errors.New("empty response body")

// Config tunes the HTTP fetch.
type Config struct {
	UserAgent      string        `env:"FETCH_USER_AGENT" yaml:"user_agent"`
	RequestTimeout time.Duration `env:"FETCH_TIMEOUT"    yaml:"request_timeout"`
	MaxBodySize    int           `yaml:"max_body_size"`
	DetectCharset  bool          `yaml:"detect_charset"`
}

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher fetches single pages. It is safe for concurrent use: every call
// builds its own collector.
type Fetcher struct {
	cfg Config
	log logger.Logger
}

// New returns a Fetcher with defaults applied to cfg.
func New(cfg Config, log logger.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return &Fetcher{cfg: cfg, log: log}
}

// Fetch GETs pageURL and returns the final document after redirects.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.UserAgent(f.cfg.UserAgent),
		colly.MaxBodySize(f.cfg.MaxBodySize),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	}
	if f.cfg.DetectCharset {
		opts = append(opts, colly.DetectCharset())
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(f.cfg.RequestTimeout)

	var (
		page     *Page
		visitErr error
	)
	c.OnResponse(func(r *colly.Response) {
		page = &Page{URL: r.Request.URL.String(), StatusCode: r.StatusCode, Body: r.Body}
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		visitErr = fmt.Errorf("fetch %s (status %d): %w", pageURL, status, err)
	})

	f.log.Debug("Fetching page", logger.String("url", pageURL))
	if err := c.Visit(pageURL); err != nil && visitErr == nil {
		visitErr = fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	c.Wait()

	if visitErr != nil {
		return nil, visitErr
	}
	if page == nil || len(page.Body) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, ErrEmptyBody)
	}
	return page, nil
}

// Markup fetches pageURL and returns its body as text.
func (f *Fetcher) Markup(ctx context.Context, pageURL string) (string, error) {
	p, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return string(p.Body), nil
}
