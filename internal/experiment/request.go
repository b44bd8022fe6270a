package experiment

import (
	"fmt"

	"edgeplace/internal/model"
	"edgeplace/internal/placement"
)

const DefaultTrials = 10

// Normalize fills defaults and checks req against a dataset of available
// demand points.
func Normalize(req model.ExperimentRequest, available int) (model.ExperimentRequest, error) {
	if len(req.Algorithms) == 0 {
		req.Algorithms = append([]string(nil), Algorithms...)
	}
	seen := map[string]bool{}
	for _, a := range req.Algorithms {
		if !KnownAlgorithm(a) {
			return req, fmt.Errorf("unknown algorithm: %s", a)
		}
		if seen[a] {
			return req, fmt.Errorf("algorithm %s listed twice", a)
		}
		seen[a] = true
	}
	if req.Trials == 0 {
		req.Trials = DefaultTrials
	}
	if req.Trials < 0 {
		return req, fmt.Errorf("trials must be >= 1")
	}
	if req.TimeBudgetMs < 0 {
		return req, fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.NodeLimit < 0 {
		return req, fmt.Errorf("nodeLimit must be >= 0")
	}
	if req.GapTolerance < 0 || req.GapTolerance >= 1 {
		return req, fmt.Errorf("gapTolerance must be in [0,1)")
	}
	if req.TrialRate < 0 {
		return req, fmt.Errorf("trialRate must be >= 0")
	}
	mode, err := placement.ParseSamplingMode(req.Sampling)
	if err != nil {
		return req, err
	}
	req.Sampling = string(mode)
	rank, err := placement.ParseRankBy(req.RankBy)
	if err != nil {
		return req, err
	}
	req.RankBy = string(rank)

	cells := 0
	for si, sweep := range req.Sweeps {
		for _, g := range sweep {
			switch {
			case g.K < 1:
				return req, fmt.Errorf("sweep %d: k=%d must be at least 1", si, g.K)
			case g.K > g.N:
				return req, fmt.Errorf("sweep %d: k=%d exceeds n=%d", si, g.K, g.N)
			case g.N > available:
				return req, fmt.Errorf("sweep %d: n=%d exceeds the %d available demand points", si, g.N, available)
			}
			cells++
		}
	}
	if cells == 0 {
		return req, fmt.Errorf("sweeps must contain at least one grid point")
	}
	return req, nil
}
