// Package config assembles the service configuration from a YAML file,
// optional .env files and environment variables.
//
// Sources are applied in this order, later ones winning:
//
//  1. the YAML file passed to Load (optional)
//  2. built-in defaults for anything still unset
//  3. environment variables named by `env` struct tags
//
// .env files are loaded into the process environment first: ENV_FILE when
// set, otherwise .env.local then .env.
package config

import (
	"strconv"
	"time"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/browser"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/executor"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/fetcher"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/llm"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/storage"
)

// Config is the complete service configuration.
type Config struct {
	App      AppConfig       `yaml:"app"`
	Logger   logger.Config   `yaml:"logger"`
	Pipeline PipelineConfig  `yaml:"pipeline"`
	Browser  browser.Config  `yaml:"browser"`
	Fetcher  fetcher.Config  `yaml:"fetcher"`
	LLM      llm.Config      `yaml:"llm"`
	Database storage.Config  `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis"`
	Server   ServerConfig    `yaml:"server"`
	Executor executor.Config `yaml:"executor"`
}

// AppConfig identifies the running service.
type AppConfig struct {
	Name        string `env:"APP_NAME" yaml:"name"`
	Environment string `env:"APP_ENV"  yaml:"environment"`
	Debug       bool   `env:"APP_DEBUG" yaml:"debug"`
}

// PipelineConfig holds the controller budgets.
type PipelineConfig struct {
	MaxStaticAttempts int `env:"PIPELINE_MAX_STATIC_ATTEMPTS" yaml:"max_static_attempts"`
	MaxLiveAttempts   int `env:"PIPELINE_MAX_LIVE_ATTEMPTS"   yaml:"max_live_attempts"`
	Concurrency       int `env:"PIPELINE_CONCURRENCY"         yaml:"concurrency"`
	// Refine enables LLM refinement of analyzed selectors.
	Refine bool `env:"PIPELINE_REFINE" yaml:"refine"`
}

// Controller converts to the pipeline controller config.
func (c PipelineConfig) Controller() pipeline.Config {
	return pipeline.Config{
		MaxStaticAttempts: c.MaxStaticAttempts,
		MaxLiveAttempts:   c.MaxLiveAttempts,
		Concurrency:       c.Concurrency,
	}
}

// RedisConfig configures the run journal stream. An empty Addr keeps the
// journal in the log only.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
	Stream   string `env:"REDIS_STREAM"   yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" yaml:"host"`
	Port         int           `env:"SERVER_PORT" yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Address returns host:port.
func (c ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// SetDefaults fills every unset value.
func (c *Config) SetDefaults() {
	if c.App.Name == "" {
		c.App.Name = "boardsynth"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.Debug && c.Logger.Level == "" {
		c.Logger.Level = "debug"
	}
	c.Logger.SetDefaults()

	if c.Pipeline.MaxStaticAttempts == 0 {
		c.Pipeline.MaxStaticAttempts = 3
	}
	if c.Pipeline.MaxLiveAttempts == 0 {
		c.Pipeline.MaxLiveAttempts = 3
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 4
	}

	c.Browser.SetDefaults()
	c.LLM.SetDefaults()
	c.Executor.SetDefaults()

	if c.Redis.Stream == "" {
		c.Redis.Stream = journal.DefaultStream
	}
	if c.Redis.MaxLen <= 0 {
		c.Redis.MaxLen = 10000
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// a synthesis request holds the connection for the whole run
		c.Server.WriteTimeout = 10 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
}
