package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

// Static drives pages without a browser: documents are fetched over HTTP and
// queried with goquery. Script-rendered boards will match nothing.
type Static struct {
	cfg   Config
	fetch Fetcher
	log   logger.Logger
}

// NewStatic returns a static driver backed by fetch.
func NewStatic(cfg Config, fetch Fetcher, log logger.Logger) *Static {
	cfg.SetDefaults()
	return &Static{cfg: cfg, fetch: fetch, log: log}
}

func (s *Static) Name() string { return DriverStatic }

func (s *Static) Open(context.Context) (Session, error) {
	if s.fetch == nil {
		return nil, fmt.Errorf("static driver: no fetcher configured")
	}
	return &staticPage{fetch: s.fetch, navTimeout: s.cfg.NavigationTimeout}, nil
}

// NewDocumentPage returns a session over markup that is already in hand.
// Goto to any other URL fails unless fetch is non-nil.
func NewDocumentPage(markup, pageURL string, fetch Fetcher) (Session, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return &staticPage{fetch: fetch, url: pageURL, doc: doc}, nil
}

type staticPage struct {
	fetch      Fetcher
	navTimeout time.Duration
	url        string
	doc        *goquery.Document
}

func (p *staticPage) Goto(ctx context.Context, pageURL string) error {
	if p.doc != nil && p.url == pageURL {
		return nil
	}
	if p.fetch == nil {
		return fmt.Errorf("goto %s: %w", pageURL, ErrNotLoaded)
	}
	ctx, cancel := withTimeout(ctx, p.navTimeout)
	defer cancel()

	fetched, err := p.fetch.Fetch(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("goto %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetched.Body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", pageURL, err)
	}
	p.doc, p.url = doc, fetched.URL
	return nil
}

func (p *staticPage) URL() string { return p.url }

func (p *staticPage) FindAll(_ context.Context, selector string) ([]scrape.Element, error) {
	if p.doc == nil {
		return nil, ErrNotLoaded
	}
	return wrapSelection(p.doc.Find(selector)), nil
}

func (p *staticPage) WaitFor(ctx context.Context, selector string) error {
	found, err := p.FindAll(ctx, selector)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("wait for %q: %w", selector, ErrNoMatch)
	}
	return nil
}

// Next follows the href of the first element matching selector, or of its
// first anchor. Elements without a navigable href count as no match.
func (p *staticPage) Next(ctx context.Context, selector string) (bool, error) {
	if p.doc == nil {
		return false, ErrNotLoaded
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return false, nil
	}
	href, ok := sel.Attr("href")
	if !ok {
		href, ok = sel.Find("a[href]").First().Attr("href")
	}
	href = strings.TrimSpace(href)
	if !ok || href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return false, nil
	}
	target := scrape.Resolve(p.url, href)
	if target == p.url {
		return false, nil
	}
	if err := p.Goto(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// DetailText extracts the readable body of a post page, falling back to the
// whole body text when readability finds nothing.
func (p *staticPage) DetailText(ctx context.Context, pageURL string) (string, error) {
	if p.fetch == nil {
		return "", fmt.Errorf("detail %s: %w", pageURL, ErrNotLoaded)
	}
	fetched, err := p.fetch.Fetch(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("detail %s: %w", pageURL, err)
	}
	return readableText(string(fetched.Body), fetched.URL), nil
}

func (p *staticPage) Close() error { return nil }

func readableText(markup, pageURL string) string {
	if parsed, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(markup), parsed); err == nil {
			if text := scrape.Clean(article.TextContent); text != "" {
				return text
			}
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return scrape.Clean(doc.Find("body").Text())
}

type selection struct {
	s *goquery.Selection
}

func wrapSelection(s *goquery.Selection) []scrape.Element {
	out := make([]scrape.Element, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		out = append(out, selection{s: item})
	})
	return out
}

func (e selection) Text() (string, error) { return e.s.Text(), nil }

func (e selection) Attr(name string) (string, error) {
	v, _ := e.s.Attr(name)
	return v, nil
}

func (e selection) FindAll(selector string) ([]scrape.Element, error) {
	return wrapSelection(e.s.Find(selector)), nil
}
