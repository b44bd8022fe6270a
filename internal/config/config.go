package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"edgeplace/internal/experiment"
	"edgeplace/internal/model"
	"edgeplace/internal/placement"
)

type Config struct {
	LogLevel   string     `yaml:"logLevel"`
	Dataset    Dataset    `yaml:"dataset"`
	Experiment Experiment `yaml:"experiment"`
	Exact      Exact      `yaml:"exact"`
	Cache      Cache      `yaml:"cache"`
	Store      Store      `yaml:"store"`
	Progress   Progress   `yaml:"progress"`
	Server     Server     `yaml:"server"`
}

type Dataset struct {
	Stations    string `yaml:"stations"`
	Sessions    string `yaml:"sessions"`
	ShuffleSeed int64  `yaml:"shuffleSeed"`
}

type Experiment struct {
	Algorithms   []string `yaml:"algorithms"`
	Trials       int      `yaml:"trials"`
	Seed         int64    `yaml:"seed"`
	TrialRate    float64  `yaml:"trialRate"` // trials per second, 0 = unpaced
	Parallelism  int      `yaml:"parallelism"`
	Sampling     string   `yaml:"sampling"`
	SamplingSeed int64    `yaml:"samplingSeed"`
	RankBy       string   `yaml:"rankBy"`
	Sweeps       []Sweep  `yaml:"sweeps"`
}

// Sweep describes one block of the report. Kind "scale" grows n from From to
// To by Step with k = n/Ratio; "servers" keeps N fixed and grows k; "points"
// lists the grid explicitly.
type Sweep struct {
	Kind   string            `yaml:"kind"`
	From   int               `yaml:"from"`
	To     int               `yaml:"to"`
	Step   int               `yaml:"step"`
	Ratio  int               `yaml:"ratio"`
	N      int               `yaml:"n"`
	Points []model.GridPoint `yaml:"points"`
}

type Exact struct {
	TimeBudget      time.Duration `yaml:"timeBudget"`
	NodeLimit       int           `yaml:"nodeLimit"`
	GapTolerance    float64       `yaml:"gapTolerance"`
	LPBoundMaxSites int           `yaml:"lpBoundMaxSites"`
}

type Cache struct {
	Backend  string        `yaml:"backend"` // none, memory, dir, redis
	Dir      string        `yaml:"dir"`
	RedisURL string        `yaml:"redisUrl"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type Store struct {
	DatabaseURL string `yaml:"databaseUrl"`
}

type Progress struct {
	RedisURL string `yaml:"redisUrl"`
}

type Server struct {
	Port string `yaml:"port"`
}

// Default mirrors the published experiment: n from 300 to 3000 in steps of
// 300 with k = n/10, then n = 300 with k from 15 to 150.
func Default() Config {
	return Config{
		LogLevel: "info",
		Dataset: Dataset{
			Stations:    "data/baseN.csv",
			Sessions:    "data/userN.csv",
			ShuffleSeed: 6767,
		},
		Experiment: Experiment{
			Algorithms: append([]string(nil), experiment.Algorithms...),
			Trials:     10,
			Seed:       1,
			Sampling:   string(placement.SamplePrefix),
			RankBy:     string(placement.RankByWorkload),
			Sweeps: []Sweep{
				{Kind: "scale", From: 300, To: 3000, Step: 300, Ratio: 10},
				{Kind: "servers", N: 300, From: 15, To: 150, Step: 15},
			},
		},
		Exact: Exact{
			TimeBudget:      placement.DefaultExactTimeBudget,
			LPBoundMaxSites: placement.DefaultLPBoundMaxSites,
		},
		Cache:  Cache{Backend: "dir", Dir: "cache", Prefix: "edgeplace:"},
		Server: Server{Port: "8080"},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML into cfg, keeping values the document does not set.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Progress.RedisURL = v
		if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
			c.Cache.RedisURL = v
		}
	}
	if v := getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("EXACT_TIME_BUDGET"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("EXACT_TIME_BUDGET: %w", err)
		}
		c.Exact.TimeBudget = d
	}
	if v := getenv("TRIALS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRIALS: %w", err)
		}
		c.Experiment.Trials = n
	}
	return nil
}

// Request builds the experiment request the configuration describes.
func (c Config) Request(label string) (model.ExperimentRequest, error) {
	grid, err := c.Experiment.Grid()
	if err != nil {
		return model.ExperimentRequest{}, err
	}
	e := c.Experiment
	return model.ExperimentRequest{
		Label:           label,
		Sweeps:          grid,
		Algorithms:      append([]string(nil), e.Algorithms...),
		Trials:          e.Trials,
		Seed:            e.Seed,
		Sampling:        e.Sampling,
		SamplingSeed:    e.SamplingSeed,
		TimeBudgetMs:    int(c.Exact.TimeBudget.Milliseconds()),
		NodeLimit:       c.Exact.NodeLimit,
		GapTolerance:    c.Exact.GapTolerance,
		LPBoundMaxSites: c.Exact.LPBoundMaxSites,
		RankBy:          e.RankBy,
		TrialRate:       e.TrialRate,
	}, nil
}

// Grid expands the configured sweeps.
func (e Experiment) Grid() ([][]model.GridPoint, error) {
	out := make([][]model.GridPoint, 0, len(e.Sweeps))
	for i, s := range e.Sweeps {
		pts, err := s.Expand()
		if err != nil {
			return nil, fmt.Errorf("sweep %d: %w", i, err)
		}
		out = append(out, pts)
	}
	return out, nil
}

func (s Sweep) Expand() ([]model.GridPoint, error) {
	pts, err := s.expand()
	if err == nil && len(pts) == 0 {
		err = fmt.Errorf("%s sweep yields no grid points", s.Kind)
	}
	return pts, err
}

func (s Sweep) expand() ([]model.GridPoint, error) {
	switch s.Kind {
	case "scale":
		if s.Ratio < 1 {
			return nil, fmt.Errorf("ratio must be >= 1")
		}
		if s.Step < 1 || s.From < 1 || s.To < s.From {
			return nil, fmt.Errorf("invalid range %d..%d step %d", s.From, s.To, s.Step)
		}
		return experiment.ScaleSweep(s.From, s.To, s.Step, s.Ratio), nil
	case "servers":
		if s.Step < 1 || s.From < 1 || s.To < s.From {
			return nil, fmt.Errorf("invalid range %d..%d step %d", s.From, s.To, s.Step)
		}
		if s.N < 1 {
			return nil, fmt.Errorf("n must be >= 1")
		}
		return experiment.ServerSweep(s.N, s.From, s.To, s.Step), nil
	case "points":
		if len(s.Points) == 0 {
			return nil, fmt.Errorf("points must not be empty")
		}
		return append([]model.GridPoint(nil), s.Points...), nil
	}
	return nil, fmt.Errorf("unknown sweep kind %q (allowed: scale, servers, points)", s.Kind)
}

func (c Config) Validate() error {
	if len(c.Experiment.Algorithms) == 0 {
		return fmt.Errorf("experiment.algorithms must not be empty")
	}
	for _, a := range c.Experiment.Algorithms {
		if !experiment.KnownAlgorithm(a) {
			return fmt.Errorf("unknown algorithm: %s (allowed: %s)", a, strings.Join(experiment.Algorithms, ","))
		}
	}
	if c.Experiment.Trials < 1 {
		return fmt.Errorf("experiment.trials must be >= 1")
	}
	if c.Experiment.TrialRate < 0 {
		return fmt.Errorf("experiment.trialRate must be >= 0")
	}
	if c.Experiment.Parallelism < 0 {
		return fmt.Errorf("experiment.parallelism must be >= 0")
	}
	if _, err := placement.ParseSamplingMode(c.Experiment.Sampling); err != nil {
		return err
	}
	if _, err := placement.ParseRankBy(c.Experiment.RankBy); err != nil {
		return err
	}
	if _, err := c.Experiment.Grid(); err != nil {
		return err
	}
	if c.Exact.TimeBudget < 0 {
		return fmt.Errorf("exact.timeBudget must be >= 0")
	}
	if c.Exact.NodeLimit < 0 {
		return fmt.Errorf("exact.nodeLimit must be >= 0")
	}
	if c.Exact.GapTolerance < 0 || c.Exact.GapTolerance >= 1 {
		return fmt.Errorf("exact.gapTolerance must be in [0,1)")
	}
	switch c.Cache.Backend {
	case "none", "memory":
	case "dir":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir required for the dir backend")
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redisUrl (or REDIS_URL) required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s (allowed: none,memory,dir,redis)", c.Cache.Backend)
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric: %q", c.Server.Port)
	}
	return nil
}

// Redacted returns a copy safe to expose on debug endpoints.
func (c Config) Redacted() Config {
	c.Store.DatabaseURL = redactURL(c.Store.DatabaseURL)
	c.Cache.RedisURL = redactURL(c.Cache.RedisURL)
	c.Progress.RedisURL = redactURL(c.Progress.RedisURL)
	c.Experiment.Algorithms = append([]string(nil), c.Experiment.Algorithms...)
	c.Experiment.Sweeps = append([]Sweep(nil), c.Experiment.Sweeps...)
	return c
}

func redactURL(s string) string {
	if s == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return "***"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
