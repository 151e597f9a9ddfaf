package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

// Rod drives Chromium over the DevTools protocol. Each session gets its own
// browser connection; a launched browser is killed on Close.
type Rod struct {
	cfg Config
	log logger.Logger
}

// NewRod returns a rod driver.
func NewRod(cfg Config, log logger.Logger) *Rod {
	cfg.SetDefaults()
	return &Rod{cfg: cfg, log: log}
}

func (r *Rod) Name() string { return DriverRod }

func (r *Rod) Open(ctx context.Context) (Session, error) {
	controlURL := r.cfg.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(r.cfg.Headless)
		if r.cfg.Bin != "" {
			l = l.Bin(r.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chromium: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("open tab: %w", err)
	}

	r.log.Debug("Rod session opened", logger.String("control_url", controlURL))
	return &rodPage{cfg: r.cfg, browser: b, page: page, launcher: l}, nil
}

type rodPage struct {
	cfg      Config
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
}

func (p *rodPage) Goto(ctx context.Context, pageURL string) error {
	ctx, cancel := withTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()

	pg := p.page.Context(ctx)
	if err := pg.Navigate(pageURL); err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", pageURL, err)
	}
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) FindAll(ctx context.Context, selector string) ([]scrape.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapRod(els, p.cfg), nil
}

func (p *rodPage) WaitFor(ctx context.Context, selector string) error {
	ctx, cancel := withTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()

	if _, err := p.page.Context(ctx).Element(selector); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("wait for %q: %w", selector, ErrNoMatch)
		}
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Next(ctx context.Context, selector string) (bool, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return false, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(els) == 0 {
		return false, nil
	}

	ctx, cancel := withTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()

	wait := p.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := els[0].Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click %q: %w", selector, err)
	}
	wait()
	return true, nil
}

func (p *rodPage) DetailText(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()

	detail, err := p.browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("open detail %s: %w", pageURL, err)
	}
	defer func() { _ = detail.Close() }()

	dp := detail.Context(ctx)
	if err := dp.WaitLoad(); err != nil {
		return "", fmt.Errorf("load detail %s: %w", pageURL, err)
	}
	html, err := dp.HTML()
	if err != nil {
		return "", fmt.Errorf("read detail %s: %w", pageURL, err)
	}
	return readableText(html, pageURL), nil
}

func (p *rodPage) Close() error {
	err := p.browser.Close()
	if p.launcher != nil {
		p.launcher.Kill()
	}
	return err
}

type rodElement struct {
	el  *rod.Element
	cfg Config
}

func wrapRod(els rod.Elements, cfg Config) []scrape.Element {
	out := make([]scrape.Element, len(els))
	for i, el := range els {
		out[i] = rodElement{el: el, cfg: cfg}
	}
	return out
}

func (e rodElement) Text() (string, error) {
	return e.el.Timeout(e.cfg.RowTimeout).Text()
}

func (e rodElement) Attr(name string) (string, error) {
	v, err := e.el.Timeout(e.cfg.RowTimeout).Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (e rodElement) FindAll(selector string) ([]scrape.Element, error) {
	els, err := e.el.Timeout(e.cfg.RowTimeout).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapRod(els, e.cfg), nil
}
