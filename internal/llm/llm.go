// Package llm talks to generative text services. Callers depend on Client and
// receive a concrete provider from New; there is no package-level client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/circuitbreaker"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/retry"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

var (
	// ErrDisabled is returned by New when no provider is configured.
	ErrDisabled = errors.New("llm provider disabled")
	// ErrEmptyResponse is returned when a service answered with no text.
	ErrEmptyResponse = errors.New("empty llm response")
	// ErrMissingAPIKey is returned for providers that need a key.
	ErrMissingAPIKey = errors.New("llm api key is required")
)

// Client completes a prompt.
type Client interface {
	Name() string
	CompleteWithSystem(ctx context.Context, system, user string) (string, error)
}

// Config selects a provider and tunes calls to it.
type Config struct {
	Provider    string                `env:"LLM_PROVIDER" yaml:"provider"`
	Model       string                `env:"LLM_MODEL"    yaml:"model"`
	APIKey      string                `env:"LLM_API_KEY"  yaml:"api_key"`
	BaseURL     string                `env:"LLM_BASE_URL" yaml:"base_url"`
	Timeout     time.Duration         `env:"LLM_TIMEOUT"  yaml:"timeout"`
	MaxTokens   int                   `yaml:"max_tokens"`
	Temperature float64               `yaml:"temperature"`
	RateLimit   float64               `env:"LLM_RATE_LIMIT" yaml:"rate_limit"`
	RateBurst   int                   `yaml:"rate_burst"`
	Retry       retry.Config          `yaml:"retry"`
	Breaker     circuitbreaker.Config `yaml:"breaker"`
}

// SetDefaults fills unset values, including a per-provider default model.
func (c *Config) SetDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderNone
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
	if c.Model == "" {
		switch c.Provider {
		case ProviderAnthropic:
			c.Model = "claude-sonnet-4-5"
		case ProviderGemini:
			c.Model = "gemini-2.5-flash"
		case ProviderOpenAI:
			c.Model = "gpt-4o-mini"
		}
	}
}

// Recorder observes call outcomes, typically metrics.
type Recorder interface {
	LLMCall(provider, result string, elapsed time.Duration)
}

// New builds the configured provider wrapped with retry and a circuit breaker.
// It returns ErrDisabled when Provider is "none".
func New(ctx context.Context, cfg Config, rec Recorder, log logger.Logger) (Client, error) {
	cfg.SetDefaults()

	var (
		base Client
		err  error
	)
	switch cfg.Provider {
	case ProviderNone:
		return nil, ErrDisabled
	case ProviderAnthropic:
		base, err = NewAnthropic(cfg)
	case ProviderGemini:
		base, err = NewGemini(ctx, cfg)
	case ProviderOpenAI:
		base, err = NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewResilient(base, cfg, rec, log), nil
}
