package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeplace/internal/model"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	grid, err := cfg.Experiment.Grid()
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Equal(t, model.GridPoint{N: 300, K: 30}, grid[0][0])
	assert.Equal(t, model.GridPoint{N: 3000, K: 300}, grid[0][len(grid[0])-1])
	assert.Len(t, grid[1], 10)
	assert.Equal(t, model.GridPoint{N: 300, K: 150}, grid[1][9])
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgeplace.yaml")
	doc := `
dataset:
  stations: in/base.csv
experiment:
  algorithms: [topk, random]
  trials: 4
  sweeps:
    - kind: points
      points:
        - {n: 30, k: 3}
exact:
  timeBudget: 2s
cache:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("TRIALS", "6")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:secret@db:5432/edge")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "in/base.csv", cfg.Dataset.Stations)
	assert.Equal(t, "data/userN.csv", cfg.Dataset.Sessions, "unset fields keep defaults")
	assert.Equal(t, []string{"topk", "random"}, cfg.Experiment.Algorithms)
	assert.Equal(t, 6, cfg.Experiment.Trials)
	assert.Equal(t, 2*time.Second, cfg.Exact.TimeBudget)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []Sweep{{Kind: "points", Points: []model.GridPoint{{N: 30, K: 3}}}}, cfg.Experiment.Sweeps)

	red := cfg.Redacted()
	assert.Equal(t, "postgres://***@db:5432/edge", red.Store.DatabaseURL)
	assert.Equal(t, "postgres://u:secret@db:5432/edge", cfg.Store.DatabaseURL)
}

func TestRequest(t *testing.T) {
	cfg := Default()
	cfg.Exact.TimeBudget = 1500 * time.Millisecond
	cfg.Exact.LPBoundMaxSites = -1
	req, err := cfg.Request("nightly")
	require.NoError(t, err)
	assert.Equal(t, "nightly", req.Label)
	assert.Len(t, req.Sweeps, 2)
	assert.Equal(t, 1500, req.TimeBudgetMs)
	assert.Equal(t, -1, req.LPBoundMaxSites)
	assert.Equal(t, 10, req.Trials)
	assert.Equal(t, cfg.Experiment.Algorithms, req.Algorithms)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("experiment:\n  trails: 3\n"), &cfg)
	assert.Error(t, err)
	assert.NoError(t, Parse(nil, &cfg))
}

func TestApplyEnvErrors(t *testing.T) {
	cfg := Default()
	env := map[string]string{"EXACT_TIME_BUDGET": "soon"}
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	env = map[string]string{"TRIALS": "ten"}
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no algorithms", func(c *Config) { c.Experiment.Algorithms = nil }},
		{"unknown algorithm", func(c *Config) { c.Experiment.Algorithms = []string{"mip"} }},
		{"zero trials", func(c *Config) { c.Experiment.Trials = 0 }},
		{"negative rate", func(c *Config) { c.Experiment.TrialRate = -1 }},
		{"bad sampling", func(c *Config) { c.Experiment.Sampling = "stride" }},
		{"bad rank", func(c *Config) { c.Experiment.RankBy = "rtt" }},
		{"bad sweep kind", func(c *Config) { c.Experiment.Sweeps = []Sweep{{Kind: "log"}} }},
		{"empty sweep", func(c *Config) {
			c.Experiment.Sweeps = []Sweep{{Kind: "scale", From: 1, To: 5, Step: 1, Ratio: 10}}
		}},
		{"gap tolerance", func(c *Config) { c.Exact.GapTolerance = 1 }},
		{"cache backend", func(c *Config) { c.Cache.Backend = "s3" }},
		{"redis without url", func(c *Config) { c.Cache.Backend = "redis" }},
		{"port", func(c *Config) { c.Server.Port = ":80" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
