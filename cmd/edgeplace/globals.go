package main

import (
	"context"
	"fmt"
	"log/slog"

	"edgeplace/internal/cache"
	"edgeplace/internal/config"
	"edgeplace/internal/dataset"
	"edgeplace/internal/logger"
	"edgeplace/internal/metrics"
)

// Globals are flags shared by every command. Set flags override the config
// file and the environment.
type Globals struct {
	Config       string `short:"c" help:"YAML config file." type:"existingfile" env:"EDGEPLACE_CONFIG"`
	LogLevel     string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL"`
	Stations     string `help:"Station CSV (address, latitude, longitude)." type:"path"`
	Sessions     string `help:"Session CSV with a header row." type:"path"`
	CacheBackend string `help:"Cache backend (none, memory, dir, redis)."`
}

// load resolves the configuration and configures logging.
func (g *Globals) load(ctx context.Context) (context.Context, config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return ctx, cfg, nil, err
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.Stations != "" {
		cfg.Dataset.Stations = g.Stations
	}
	if g.Sessions != "" {
		cfg.Dataset.Sessions = g.Sessions
	}
	if g.CacheBackend != "" {
		cfg.Cache.Backend = g.CacheBackend
	}
	if err := cfg.Validate(); err != nil {
		return ctx, cfg, nil, err
	}
	if !logger.SetLevel(cfg.LogLevel) {
		return ctx, cfg, nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	log := logger.Setup()
	metrics.RegisterDefault()
	return logger.NewContext(ctx, log), cfg, log, nil
}

func source(cfg config.Config) dataset.Source {
	return dataset.Source{
		Stations:    cfg.Dataset.Stations,
		Sessions:    cfg.Dataset.Sessions,
		ShuffleSeed: cfg.Dataset.ShuffleSeed,
	}
}

// loadDataset opens the configured cache and loads the dataset through it.
func loadDataset(ctx context.Context, cfg config.Config, res *resources) (*dataset.Dataset, error) {
	c, err := openCache(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	return dataset.Load(ctx, source(cfg), c)
}

func openCache(ctx context.Context, cfg config.Config, res *resources) (cache.Cache, error) {
	var c cache.Cache
	switch cfg.Cache.Backend {
	case "none":
		return cache.Nop{}, nil
	case "memory":
		c = cache.NewMemory()
	case "dir":
		d, err := cache.NewDir(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		c = d
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL, redisConnectTimeout)
		if err != nil {
			return nil, err
		}
		res.add(r)
		c = r
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	return cache.Instrument(c, cfg.Cache.Backend, metrics.CacheRequests), nil
}
