package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

// Playwright drives Chromium through the playwright driver process. The
// driver must be installed beforehand (playwright install chromium).
type Playwright struct {
	cfg Config
	log logger.Logger
}

// NewPlaywright returns a playwright driver.
func NewPlaywright(cfg Config, log logger.Logger) *Playwright {
	cfg.SetDefaults()
	return &Playwright{cfg: cfg, log: log}
}

func (d *Playwright) Name() string { return DriverPlaywright }

func (d *Playwright) Open(context.Context) (Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	page, err := b.NewPage()
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	page.SetDefaultTimeout(float64(d.cfg.RowTimeout.Milliseconds()))

	d.log.Debug("Playwright session opened")
	return &pwPage{cfg: d.cfg, pw: pw, browser: b, page: page}, nil
}

type pwPage struct {
	cfg     Config
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func (p *pwPage) navTimeout(ctx context.Context) *float64 {
	ms := float64(p.cfg.NavigationTimeout.Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		if left := float64(time.Until(deadline).Milliseconds()); left < ms {
			ms = max(left, 1)
		}
	}
	return playwright.Float(ms)
}

func (p *pwPage) Goto(ctx context.Context, pageURL string) error {
	if _, err := p.page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   p.navTimeout(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	return nil
}

func (p *pwPage) URL() string { return p.page.URL() }

func (p *pwPage) FindAll(_ context.Context, selector string) ([]scrape.Element, error) {
	locs, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapLocators(locs), nil
}

func (p *pwPage) WaitFor(ctx context.Context, selector string) error {
	err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: p.navTimeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("wait for %q: %w: %w", selector, ErrNoMatch, err)
	}
	return nil
}

func (p *pwPage) Next(ctx context.Context, selector string) (bool, error) {
	loc := p.page.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return false, fmt.Errorf("query %q: %w", selector, err)
	}
	if n == 0 {
		return false, nil
	}
	if err := loc.First().Click(); err != nil {
		return false, fmt.Errorf("click %q: %w", selector, err)
	}
	if err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: p.navTimeout(ctx),
	}); err != nil {
		return false, fmt.Errorf("wait after %q: %w", selector, err)
	}
	return true, nil
}

func (p *pwPage) DetailText(ctx context.Context, pageURL string) (string, error) {
	detail, err := p.browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("open detail %s: %w", pageURL, err)
	}
	defer func() { _ = detail.Close() }()

	if _, err := detail.Goto(pageURL, playwright.PageGotoOptions{Timeout: p.navTimeout(ctx)}); err != nil {
		return "", fmt.Errorf("load detail %s: %w", pageURL, err)
	}
	html, err := detail.Content()
	if err != nil {
		return "", fmt.Errorf("read detail %s: %w", pageURL, err)
	}
	return readableText(html, pageURL), nil
}

func (p *pwPage) Close() error {
	err := p.browser.Close()
	if stopErr := p.pw.Stop(); err == nil {
		err = stopErr
	}
	return err
}

type locator struct {
	l playwright.Locator
}

func wrapLocators(locs []playwright.Locator) []scrape.Element {
	out := make([]scrape.Element, len(locs))
	for i, l := range locs {
		out[i] = locator{l: l}
	}
	return out
}

func (e locator) Text() (string, error) { return e.l.TextContent() }

func (e locator) Attr(name string) (string, error) { return e.l.GetAttribute(name) }

func (e locator) FindAll(selector string) ([]scrape.Element, error) {
	locs, err := e.l.Locator(selector).All()
	if err != nil {
		return nil, err
	}
	return wrapLocators(locs), nil
}
