package experiment

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/model"
	"edgeplace/internal/placement"
)

// Algorithms lists the placers in report order.
var Algorithms = []string{"exact", "topk", "kmeans", "random"}

// stochastic placers are averaged over trials; the others run once per cell.
var stochastic = map[string]bool{"kmeans": true, "random": true}

func KnownAlgorithm(name string) bool {
	for _, a := range Algorithms {
		if a == name {
			return true
		}
	}
	return false
}

// Options carries the per-request placer settings.
type Options struct {
	Sampling     placement.Sampling
	Seed         int64
	RankBy       placement.RankBy
	TimeBudget   time.Duration
	NodeLimit    int
	GapTolerance float64
	// LPBoundMaxSites follows placement.ExactConfig.
	LPBoundMaxSites int
}

// OptionsFor derives placer settings from a normalized request.
func OptionsFor(req model.ExperimentRequest) (Options, error) {
	mode, err := placement.ParseSamplingMode(req.Sampling)
	if err != nil {
		return Options{}, err
	}
	rank, err := placement.ParseRankBy(req.RankBy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Sampling:        placement.Sampling{Mode: mode, Seed: req.SamplingSeed},
		Seed:            req.Seed,
		RankBy:          rank,
		TimeBudget:      time.Duration(req.TimeBudgetMs) * time.Millisecond,
		NodeLimit:       req.NodeLimit,
		GapTolerance:    req.GapTolerance,
		LPBoundMaxSites: req.LPBoundMaxSites,
	}, nil
}

// NewPlacer builds the named placer over a shared, read-only dataset.
func NewPlacer(name string, points []model.DemandPoint, dist mat.Symmetric, o Options) (placement.Placer, error) {
	switch name {
	case "exact":
		return placement.NewExact(points, dist, placement.ExactConfig{
			Sampling:        o.Sampling,
			TimeBudget:      o.TimeBudget,
			NodeLimit:       o.NodeLimit,
			GapTolerance:    o.GapTolerance,
			LPBoundMaxSites: o.LPBoundMaxSites,
		}), nil
	case "kmeans":
		return placement.NewKMeans(points, dist, placement.KMeansConfig{Sampling: o.Sampling, Seed: o.Seed}), nil
	case "topk":
		return placement.NewTopK(points, dist, placement.TopKConfig{Sampling: o.Sampling, RankBy: o.RankBy}), nil
	case "random":
		return placement.NewRandom(points, dist, placement.RandomConfig{Sampling: o.Sampling, Seed: o.Seed}), nil
	}
	return nil, fmt.Errorf("unknown algorithm: %s (allowed: exact,topk,kmeans,random)", name)
}
