package main

import (
	"context"
	"fmt"

	"edgeplace/internal/dataset"
)

type cacheCmd struct {
	Invalidate cacheInvalidateCmd `cmd:"" help:"Drop the cached points and distances of the configured dataset."`
}

type cacheInvalidateCmd struct{}

func (cmd *cacheInvalidateCmd) Run(ctx context.Context, g *Globals) error {
	ctx, cfg, log, err := g.load(ctx)
	if err != nil {
		return err
	}
	res := &resources{}
	defer func() { _ = res.Close() }()

	c, err := openCache(ctx, cfg, res)
	if err != nil {
		return err
	}
	if err := dataset.Invalidate(ctx, source(cfg), c); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	log.Info("dataset cache invalidated", "backend", cfg.Cache.Backend)
	return nil
}
