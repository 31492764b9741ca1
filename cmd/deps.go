package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/internal/cache"
	"github.com/promdata/mtr-cli/internal/config"
	"github.com/promdata/mtr-cli/internal/model"
	"github.com/promdata/mtr-cli/internal/pipeline"
	"github.com/promdata/mtr-cli/internal/registry"
	"github.com/promdata/mtr-cli/internal/resilience"
	"github.com/promdata/mtr-cli/pkg/anthropic"
	"github.com/promdata/mtr-cli/pkg/okpd2reg"
	"github.com/promdata/mtr-cli/pkg/websearch"
)

// openCache builds the configured cache backend. A backend that fails
// to open degrades to the in-memory cache rather than aborting the run.
func openCache(ctx context.Context, cfg config.CacheConfig) cache.Cache {
	var (
		c   cache.Cache
		err error
	)
	switch cfg.Driver {
	case "none":
		return cache.Nop{}
	case "memory":
		return cache.NewMemory()
	case "postgres":
		c, err = cache.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		c, err = cache.NewSQLite(cfg.Path)
	}
	if err != nil {
		zap.L().Warn("cache backend unavailable, falling back to memory",
			zap.String("driver", cfg.Driver), zap.Error(err))
		return cache.NewMemory()
	}
	return c
}

// newPipeline wires clients, categories and the cache into a Pipeline.
func newPipeline(ctx context.Context, cfg *config.Config, workers int) (*pipeline.Pipeline, *model.CategoryRegistry, cache.Cache, error) {
	categories, err := registry.Load(cfg.Categories.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	var ai anthropic.Client
	if cfg.Anthropic.Key != "" {
		ai = anthropic.NewClient(cfg.Anthropic.Key)
	}
	search := websearch.NewClient(cfg.Search.Key, websearch.WithBaseURL(cfg.Search.BaseURL))
	reg := okpd2reg.NewClient(okpd2reg.WithBaseURL(cfg.Registry.BaseURL))

	store := openCache(ctx, cfg.Cache)

	if workers <= 0 {
		workers = cfg.Pipeline.Workers
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.Pipeline.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.Pipeline.RetryMaxAttempts
	}

	opts := pipeline.Options{
		Workers:            workers,
		RequestsPerSecond:  cfg.Pipeline.RequestsPerSecond,
		Burst:              cfg.Pipeline.Burst,
		Retry:              retry,
		MinFieldConfidence: cfg.Pipeline.MinFieldConfidence,
		DetectModel:        cfg.Anthropic.HaikuModel,
		ResearchModel:      cfg.Anthropic.SonnetModel,
	}
	return pipeline.New(opts, categories, ai, search, reg, store), categories, store, nil
}
