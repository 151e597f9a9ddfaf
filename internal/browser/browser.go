// Package browser provides the page drivers synthesized crawlers run against.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/fetcher"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

// Driver names accepted in Config.Driver.
const (
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
	DriverStatic     = "static"
)

var (
	// ErrNotLoaded is returned by page operations before Goto succeeded.
	ErrNotLoaded = errors.New("no document loaded")
	// ErrNoMatch is returned by WaitFor when the selector never matched.
	ErrNoMatch = errors.New("selector matched nothing")
	// ErrUnknownDriver is returned by New for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown browser driver")
)

// Config selects and tunes the page driver.
type Config struct {
	Driver            string        `env:"BROWSER_DRIVER"      yaml:"driver"`
	Headless          bool          `env:"BROWSER_HEADLESS"    yaml:"headless"`
	Bin               string        `env:"BROWSER_BIN"         yaml:"bin"`
	ControlURL        string        `env:"BROWSER_CONTROL_URL" yaml:"control_url"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	RowTimeout        time.Duration `yaml:"row_timeout"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverRod
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.RowTimeout <= 0 {
		c.RowTimeout = 5 * time.Second
	}
}

// Session is a page bound to browser resources that must be released.
type Session interface {
	scrape.Page
	Close() error
}

// Driver opens sessions. Implementations must allow concurrent Open calls.
type Driver interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// Fetcher is the HTTP source used by the static driver.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*fetcher.Page, error)
}

// New builds the driver named by cfg.Driver.
func New(cfg Config, fetch Fetcher, log logger.Logger) (Driver, error) {
	cfg.SetDefaults()
	switch strings.ToLower(cfg.Driver) {
	case DriverRod:
		return NewRod(cfg, log), nil
	case DriverPlaywright:
		return NewPlaywright(cfg, log), nil
	case DriverStatic:
		return NewStatic(cfg, fetch, log), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
