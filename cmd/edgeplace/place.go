package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"edgeplace/internal/experiment"
	"edgeplace/internal/placement"
	"edgeplace/internal/report"
)

type placeCmd struct {
	Algo         string        `help:"Placement algorithm." enum:"exact,topk,kmeans,random" default:"kmeans"`
	N            int           `short:"n" help:"Demand points to consider." required:""`
	K            int           `short:"k" help:"Servers to place." required:""`
	Seed         int64         `help:"Seed for stochastic placers." default:"1"`
	Sampling     string        `help:"How the n points are chosen." enum:"prefix,random" default:"prefix"`
	SamplingSeed int64         `help:"Seed for random sampling."`
	RankBy       string        `help:"Top-K ranking." enum:"workload,users" default:"workload"`
	TimeBudget   time.Duration `help:"Wall-clock budget for the exact solver (0 uses the configured budget)."`
	JSON         bool          `help:"Print the placement as JSON."`
}

type placeOutput struct {
	Algorithm      string                `json:"algorithm"`
	N              int                   `json:"n"`
	K              int                   `json:"k"`
	LatencyKm      float64               `json:"latencyKm"`
	WorkloadStdDev float64               `json:"workloadStdDev"`
	ElapsedMs      float64               `json:"elapsedMs"`
	Sites          []int                 `json:"sites"`
	Exact          *placement.SolveStats `json:"exact,omitempty"`
}

func (cmd *placeCmd) Run(ctx context.Context, g *Globals) error {
	ctx, cfg, log, err := g.load(ctx)
	if err != nil {
		return err
	}
	res := &resources{}
	defer func() { _ = res.Close() }()

	ds, err := loadDataset(ctx, cfg, res)
	if err != nil {
		return err
	}
	mode, err := placement.ParseSamplingMode(cmd.Sampling)
	if err != nil {
		return err
	}
	rank, err := placement.ParseRankBy(cmd.RankBy)
	if err != nil {
		return err
	}
	budget := cmd.TimeBudget
	if budget == 0 {
		budget = cfg.Exact.TimeBudget
	}
	p, err := experiment.NewPlacer(cmd.Algo, ds.Points, ds.Distances, experiment.Options{
		Sampling:        placement.Sampling{Mode: mode, Seed: cmd.SamplingSeed},
		Seed:            cmd.Seed,
		RankBy:          rank,
		TimeBudget:      budget,
		NodeLimit:       cfg.Exact.NodeLimit,
		GapTolerance:    cfg.Exact.GapTolerance,
		LPBoundMaxSites: cfg.Exact.LPBoundMaxSites,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	if err := p.PlaceServer(cmd.N, cmd.K); err != nil {
		return err
	}
	out := placeOutput{Algorithm: cmd.Algo, N: cmd.N, K: cmd.K,
		ElapsedMs: float64(time.Since(start).Microseconds()) / 1000}
	if out.LatencyKm, err = p.ObjectiveLatency(); err != nil {
		return err
	}
	if out.WorkloadStdDev, err = p.ObjectiveWorkload(); err != nil {
		return err
	}
	pl, err := p.Placement()
	if err != nil {
		return err
	}
	out.Sites = pl.Sites
	if e, ok := p.(*placement.Exact); ok {
		st := e.Stats()
		out.Exact = &st
		if !st.Optimal {
			log.Warn("exact placement not proven optimal", "reason", st.StopReason, "gap", st.Gap)
		}
	}

	if cmd.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Printf("%s n=%d k=%d\n", report.Label(cmd.Algo), cmd.N, cmd.K)
	fmt.Printf("Latency: %.4f km\n", out.LatencyKm)
	fmt.Printf("Workload std: %.4f\n", out.WorkloadStdDev)
	fmt.Printf("Sites: %v\n", out.Sites)
	if out.Exact != nil {
		fmt.Printf("Optimal: %t gap=%.4f nodes=%d stop=%s\n",
			out.Exact.Optimal, out.Exact.Gap, out.Exact.Nodes, out.Exact.StopReason)
	}
	return nil
}
