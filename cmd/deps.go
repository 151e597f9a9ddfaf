package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/config"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

// commandDeps is what every subcommand starts from.
type commandDeps struct {
	Config *config.Config
	Logger logger.Logger
}

// newCommandDeps loads configuration and builds the logger. Flags and
// BOARDSYNTH_* variables read through viper win over the file.
func newCommandDeps() (commandDeps, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return commandDeps{}, err
	}

	if viper.GetBool("app.debug") {
		cfg.App.Debug = true
		cfg.Logger.Level = "debug"
	}
	if level := viper.GetString("logger.level"); level != "" {
		cfg.Logger.Level = level
	}
	if err = cfg.Validate(); err != nil {
		return commandDeps{}, fmt.Errorf("validate config: %w", err)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return commandDeps{}, fmt.Errorf("create logger: %w", err)
	}
	return commandDeps{Config: cfg, Logger: log}, nil
}

// configPath resolves --config, then ./config.* and ./config/config.*, then
// CONFIG_PATH. An empty result means defaults and environment only.
func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}

	finder := viper.New()
	finder.SetConfigName("config")
	finder.SetConfigType("yaml")
	finder.AddConfigPath(".")
	finder.AddConfigPath("./config")
	if err := finder.ReadInConfig(); err == nil {
		return finder.ConfigFileUsed()
	}
	return config.Path("")
}

// boardFlags are the board-describing flags shared by analyze and synth.
type boardFlags struct {
	name       string
	url        string
	region     string
	markupFile string
}

func (f boardFlags) board() (domain.BoardSource, error) {
	b := domain.BoardSource{Name: f.name, URL: f.url, Region: f.region}
	if f.markupFile != "" {
		data, err := os.ReadFile(f.markupFile)
		if err != nil {
			return b, fmt.Errorf("read markup: %w", err)
		}
		b.SampledMarkup = string(data)
	}
	if b.Name == "" {
		return b, errors.New("--name is required")
	}
	return b, b.Validate()
}
