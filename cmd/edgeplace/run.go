package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"edgeplace/internal/experiment"
	"edgeplace/internal/model"
	"edgeplace/internal/report"
)

type runCmd struct {
	Label string `help:"Label stored with the run."`
	Out   string `help:"Write the text report to this file instead of stdout." type:"path"`
	CSV   string `help:"Also write the results as CSV to this file." type:"path"`
}

func (cmd *runCmd) Run(ctx context.Context, g *Globals) error {
	ctx, cfg, log, err := g.load(ctx)
	if err != nil {
		return err
	}
	res := &resources{}
	defer func() { _ = res.Close() }()

	req, err := cfg.Request(cmd.Label)
	if err != nil {
		return err
	}
	ds, err := loadDataset(ctx, cfg, res)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, res, log)
	if err != nil {
		return err
	}
	drv := experiment.NewDriver(ds.Points, ds.Distances, st, log,
		experiment.WithParallelism(cfg.Experiment.Parallelism))

	run, err := drv.Run(ctx, req)
	if err != nil {
		return err
	}
	log.Info("run finished", "id", run.ID, "status", run.Status, "results", len(run.Results))

	if err := writeReport(cmd.Out, run.Results, report.WriteText); err != nil {
		return err
	}
	if cmd.CSV != "" {
		if err := writeReport(cmd.CSV, run.Results, report.WriteCSV); err != nil {
			return err
		}
	}
	if run.Status != model.RunStatusCompleted {
		return fmt.Errorf("run %s %s: %s", run.ID, run.Status, run.Error)
	}
	return nil
}

// writeReport writes to path, or to stdout when path is empty.
func writeReport(path string, results []model.AlgoResult, write func(io.Writer, []model.AlgoResult) error) (err error) {
	if path == "" {
		return write(os.Stdout, results)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return write(f, results)
}
