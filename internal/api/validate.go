package api

import (
	"fmt"

	"edgeplace/internal/model"
)

const (
	maxLabelLen  = 200
	maxGridCells = 1000
	maxTrials    = 1000
)

// validateRunRequest bounds what one API caller may schedule. Semantic checks
// against the dataset happen in the experiment driver.
func validateRunRequest(req *model.ExperimentRequest) error {
	if len(req.Label) > maxLabelLen {
		return fmt.Errorf("label must be at most %d characters", maxLabelLen)
	}
	if len(req.Sweeps) == 0 {
		return fmt.Errorf("sweeps must not be empty")
	}
	cells := 0
	for _, s := range req.Sweeps {
		cells += len(s)
	}
	if cells > maxGridCells {
		return fmt.Errorf("at most %d grid cells per run, got %d", maxGridCells, cells)
	}
	if req.Trials > maxTrials {
		return fmt.Errorf("trials must be <= %d", maxTrials)
	}
	return nil
}
