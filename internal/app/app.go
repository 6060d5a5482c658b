// Package app wires configuration into a ready pipeline. Both binaries use it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"factcheck/backend/internal/brave"
	"factcheck/backend/internal/cache"
	"factcheck/backend/internal/config"
	"factcheck/backend/internal/db"
	"factcheck/backend/internal/history"
	"factcheck/backend/internal/logger"
	"factcheck/backend/internal/metrics"
	"factcheck/backend/internal/normalize"
	"factcheck/backend/internal/pipeline"
	"factcheck/backend/internal/prompt"
	"factcheck/backend/internal/reasoning"
	"factcheck/backend/internal/sources"
)

type App struct {
	Orchestrator *pipeline.Orchestrator
	Directory    sources.Directory
	History      *history.Store
	Metrics      *metrics.Metrics

	closers []func() error
}

// Build constructs every component from cfg. Optional backends (redis,
// database, brave search) are only wired when configured.
func Build(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	directory, err := sources.LoadOrDefault(cfg.SourceDirectoryFile)
	if err != nil {
		return nil, fmt.Errorf("load source directory: %w", err)
	}

	a := &App{Directory: directory, Metrics: m}

	reader := normalize.NewHTTPReader(normalize.ReaderConfig{RequestTimeout: cfg.ScrapeTimeout}, nil)
	normalizer := normalize.New(reader, cfg.MaxImageBytes)
	invoker := reasoning.FromConfig(cfg, nil)

	expanderOpts := []sources.ExpanderOption{sources.WithLogger(log), sources.WithMetrics(m)}
	if cfg.SourceSearchEnabled {
		expanderOpts = append(expanderOpts, sources.WithSearcher(brave.NewClient(cfg, &http.Client{Timeout: cfg.ProbeTimeout})))
	}
	expander := sources.NewExpander(
		directory,
		sources.NewHTTPProber(cfg.ProbeTimeout, nil),
		sources.ExpanderConfig{Concurrency: cfg.ProbeConcurrency},
		expanderOpts...,
	)

	opts := []pipeline.Option{
		pipeline.WithExpander(expander),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
	}

	if cfg.RedisAddress != "" {
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, redisCache.Close)
		opts = append(opts, pipeline.WithCache(redisCache))
		log.Info("verdict cache enabled", logger.String("redis", cfg.RedisAddress))
	}

	if cfg.DatabaseURL != "" {
		database, err := openHistory(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		store := history.NewStore(database)
		a.History = &store
		opts = append(opts, pipeline.WithRecorder(store))
		log.Info("check history enabled")
	}

	a.Orchestrator = pipeline.New(pipeline.Config{
		Models:        prompt.Models{Text: cfg.TextModel(), Vision: cfg.VisionModel()},
		MaxImageBytes: cfg.MaxImageBytes,
		Timeout:       cfg.PipelineTimeout,
	}, normalizer, invoker, opts...)

	log.Info("pipeline ready",
		logger.String("provider", cfg.ReasoningProvider),
		logger.String("text_model", cfg.TextModel()),
		logger.String("vision_model", cfg.VisionModel()),
		logger.Int("sources", directory.Len()),
		logger.Bool("search", cfg.SourceSearchEnabled),
	)
	return a, nil
}

func openHistory(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return database, nil
}

// Close releases backends in reverse order of construction.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
