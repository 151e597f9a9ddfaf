package config

import (
	"fmt"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/browser"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/llm"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Logger.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return &ValidationError{Field: "logger.level", Message: "must be one of: debug, info, warn, error, fatal"}
	}

	switch c.Browser.Driver {
	case browser.DriverRod, browser.DriverPlaywright, browser.DriverStatic:
	default:
		return &ValidationError{Field: "browser.driver", Message: fmt.Sprintf("unsupported driver %q", c.Browser.Driver)}
	}

	switch c.LLM.Provider {
	case llm.ProviderNone:
	case llm.ProviderAnthropic, llm.ProviderGemini, llm.ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return &ValidationError{Field: "llm.api_key", Message: "is required for provider " + c.LLM.Provider}
		}
	default:
		return &ValidationError{Field: "llm.provider", Message: fmt.Sprintf("unsupported provider %q", c.LLM.Provider)}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: "must be between 1 and 65535"}
	}

	if c.Database.Enabled() {
		if c.Database.User == "" {
			return &ValidationError{Field: "database.user", Message: "is required"}
		}
		if c.Database.DBName == "" {
			return &ValidationError{Field: "database.dbname", Message: "is required"}
		}
	}
	return nil
}
