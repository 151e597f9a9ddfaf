package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/analyzer"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/browser"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/config"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/executor"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/fetcher"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/llm"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/metrics"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/repair"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/storage"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/synth"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/validate"
)

const redisPingTimeout = 5 * time.Second

// Build wires every stage from cfg. Metrics register on reg when it is
// non-nil. A database failure is fatal; an unreachable Redis falls back to
// the log journal.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log logger.Logger) (*Service, error) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	fetch := fetcher.New(cfg.Fetcher, log)
	driver, err := browser.New(cfg.Browser, fetch, log)
	if err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}

	var rec llm.Recorder
	if m != nil {
		rec = m
	}
	client, err := llm.New(ctx, cfg.LLM, rec, log)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		log.Info("LLM provider disabled, repairs use offline proposals")
		client = nil
	case err != nil:
		return nil, fmt.Errorf("llm: %w", err)
	default:
		log.Info("LLM provider initialized",
			logger.String("provider", cfg.LLM.Provider),
			logger.String("model", cfg.LLM.Model),
		)
	}

	a := analyzer.New(log)
	deps := pipeline.Deps{
		Analyzer:    a,
		Markup:      fetch,
		Synthesizer: synth.New(log),
		Validator:   validate.New(log),
		Executor:    executor.New(driver, cfg.Executor, log),
		Repairer:    repair.NewLLMRepairer(client, log),
		Log:         log,
	}
	if cfg.Pipeline.Refine && client != nil {
		deps.Refiner = analyzer.NewRefiner(client, log)
	}
	if m != nil {
		deps.Metrics = m
	}

	opts := Options{Analyzer: a, Markup: fetch, Log: log}

	if rj := setupJournal(ctx, cfg.Redis, log); rj != nil {
		deps.Journal = rj
		opts.Events = rj
		opts.Closers = append(opts.Closers, rj.Close)
	}

	if cfg.Database.Enabled() {
		db, dbErr := storage.Connect(ctx, cfg.Database)
		if dbErr != nil {
			closeAll(opts.Closers, log)
			return nil, fmt.Errorf("database: %w", dbErr)
		}
		store := storage.NewModuleStore(db, log)
		if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
			_ = db.Close()
			closeAll(opts.Closers, log)
			return nil, schemaErr
		}
		opts.Store = store
		opts.Closers = append(opts.Closers, db.Close)
		log.Info("Module store initialized", logger.String("host", cfg.Database.Host))
	}

	controller, err := pipeline.New(cfg.Pipeline.Controller(), deps)
	if err != nil {
		closeAll(opts.Closers, log)
		return nil, err
	}
	opts.Runner = controller

	log.Info("Pipeline initialized",
		logger.String("driver", driver.Name()),
		logger.Int("max_static_attempts", controller.Config().MaxStaticAttempts),
		logger.Int("max_live_attempts", controller.Config().MaxLiveAttempts),
	)
	return New(opts)
}

// setupJournal returns a stream journal, or nil when Redis is disabled or
// unreachable.
func setupJournal(ctx context.Context, cfg config.RedisConfig, log logger.Logger) *journal.Redis {
	if !cfg.Enabled() {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Warn("Redis not available, journal falls back to log", logger.Error(err))
		return nil
	}

	log.Info("Journal stream initialized",
		logger.String("redis_address", cfg.Addr),
		logger.String("stream", cfg.Stream),
	)
	return journal.NewRedis(client, cfg.Stream, cfg.MaxLen, log)
}

func closeAll(closers []func() error, log logger.Logger) {
	for _, c := range closers {
		if err := c(); err != nil {
			log.Warn("Close failed", logger.Error(err))
		}
	}
}
