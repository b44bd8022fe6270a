package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"edgeplace/internal/config"
	"edgeplace/internal/progress"
	"edgeplace/internal/store"
)

const redisConnectTimeout = 10 * time.Second

// resources collects everything that must be closed on exit.
type resources struct {
	closers []io.Closer
}

func (r *resources) add(c io.Closer) { r.closers = append(r.closers, c) }

func (r *resources) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i].Close())
	}
	r.closers = nil
	return err
}

// openStore uses Postgres when a database URL is configured and memory
// otherwise.
func openStore(ctx context.Context, cfg config.Config, res *resources, log *slog.Logger) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	res.add(pg)
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	log.Info("using postgres store")
	return pg, nil
}

func openBroker(cfg config.Config, res *resources, log *slog.Logger) (progress.Broker, error) {
	if cfg.Progress.RedisURL == "" {
		return progress.NewMemory(), nil
	}
	rb, err := progress.NewRedis(cfg.Progress.RedisURL, log)
	if err != nil {
		return nil, err
	}
	res.add(rb)
	log.Info("using redis progress broker")
	return rb, nil
}
