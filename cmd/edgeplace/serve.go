package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"edgeplace/internal/api"
	"edgeplace/internal/experiment"
)

type serveCmd struct {
	Port string `help:"Listen port (overrides PORT and the config file)."`
}

func (cmd *serveCmd) Run(ctx context.Context, g *Globals) error {
	ctx, cfg, log, err := g.load(ctx)
	if err != nil {
		return err
	}
	if cmd.Port != "" {
		cfg.Server.Port = cmd.Port
	}
	res := &resources{}
	defer func() {
		if err := res.Close(); err != nil {
			log.Warn("closing resources", "err", err)
		}
	}()

	ds, err := loadDataset(ctx, cfg, res)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, res, log)
	if err != nil {
		return err
	}
	broker, err := openBroker(cfg, res, log)
	if err != nil {
		return err
	}
	drv := experiment.NewDriver(ds.Points, ds.Distances, st, log,
		experiment.WithBroker(broker),
		experiment.WithParallelism(cfg.Experiment.Parallelism))
	s := api.NewServer(ctx, cfg, st, broker, drv, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("listening", "addr", srv.Addr, "points", drv.Points())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = eg.Wait()
	// runs started over HTTP observe the cancelled base context and finish as failed
	s.Wait()
	return err
}
