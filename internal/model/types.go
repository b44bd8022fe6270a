package model

import "time"

// Core domain types shared by ingestion, placement, the experiment driver and the API.

// DemandPoint is a candidate base-station site with its observed workload.
type DemandPoint struct {
	ID        int     `json:"id"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UserNum   int     `json:"userNum"`
	Workload  float64 `json:"workload"` // minutes
}

// GridPoint is one (n, k) cell of an experiment.
type GridPoint struct {
	N int `json:"n"`
	K int `json:"k"`
}

type ExperimentRequest struct {
	Label        string        `json:"label,omitempty"`
	Sweeps       [][]GridPoint `json:"sweeps"`
	Algorithms   []string      `json:"algorithms,omitempty"`
	Trials       int           `json:"trials,omitempty"`
	Seed         int64         `json:"seed,omitempty"`
	Sampling     string        `json:"sampling,omitempty"`
	SamplingSeed int64         `json:"samplingSeed,omitempty"`
	TimeBudgetMs int           `json:"timeBudgetMs,omitempty"`
	NodeLimit    int           `json:"nodeLimit,omitempty"`
	GapTolerance float64       `json:"gapTolerance,omitempty"`
	// LPBoundMaxSites caps n for the exact LP bound: 0 default, negative off.
	LPBoundMaxSites int     `json:"lpBoundMaxSites,omitempty"`
	RankBy          string  `json:"rankBy,omitempty"`
	TrialRate       float64 `json:"trialRate,omitempty"` // trials per second, 0 = unpaced
}

// AlgoResult is the averaged outcome of one algorithm on one grid cell.
type AlgoResult struct {
	Sweep     int     `json:"sweep"`
	Algorithm string  `json:"algorithm"`
	N         int     `json:"n"`
	K         int     `json:"k"`
	Trials    int     `json:"trials"`
	Latency   float64 `json:"latencyKm"`
	Workload  float64 `json:"workloadStdDev"`
	ElapsedMs int64   `json:"elapsedMs"`
	Optimal   *bool   `json:"optimal,omitempty"`
	Gap       float64 `json:"gap,omitempty"`
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

type Run struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
	Request    ExperimentRequest `json:"request"`
	Results    []AlgoResult      `json:"results,omitempty"`
}
