// Package experiment runs placement algorithms over a grid of (n, k) cells
// and averages the stochastic ones over seeded trials.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/metrics"
	"edgeplace/internal/model"
	"edgeplace/internal/placement"
	"edgeplace/internal/progress"
	"edgeplace/internal/store"
)

// ErrInvalidRequest wraps every request validation failure from Start.
var ErrInvalidRequest = errors.New("invalid experiment request")

type Driver struct {
	points []model.DemandPoint
	dist   mat.Symmetric
	store  store.Store
	broker progress.Broker
	log    *slog.Logger
	// parallelism caps concurrent trials of one cell; 0 means one per trial.
	parallelism int
}

type Option func(*Driver)

func WithBroker(b progress.Broker) Option { return func(d *Driver) { d.broker = b } }

func WithParallelism(n int) Option { return func(d *Driver) { d.parallelism = n } }

func NewDriver(points []model.DemandPoint, dist mat.Symmetric, st store.Store, log *slog.Logger, opts ...Option) *Driver {
	d := &Driver{points: points, dist: dist, store: st, log: log}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Points is the number of demand points available to requests.
func (d *Driver) Points() int { return len(d.points) }

// Start validates req and records a new running run.
func (d *Driver) Start(ctx context.Context, req model.ExperimentRequest) (model.Run, error) {
	req, err := Normalize(req, len(d.points))
	if err != nil {
		return model.Run{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return d.store.CreateRun(ctx, req)
}

// Execute runs every cell of the run's request, appending results as cells
// complete, and finishes the run as completed or failed.
func (d *Driver) Execute(ctx context.Context, run model.Run) ([]model.AlgoResult, error) {
	log := d.log.With("run", run.ID)
	results, err := d.execute(ctx, log, run)

	// the run must be finished even when ctx was cancelled
	fctx := context.WithoutCancel(ctx)
	if err != nil {
		log.Error("run failed", "err", err)
		metrics.ExperimentRuns.WithLabelValues(model.RunStatusFailed).Inc()
		if _, ferr := d.store.FinishRun(fctx, run.ID, model.RunStatusFailed, err.Error()); ferr != nil {
			log.Error("could not mark run failed", "err", ferr)
		}
		d.publish(run.ID, progress.EventRunFailed, map[string]any{"error": err.Error()})
		return results, err
	}
	if _, err := d.store.FinishRun(fctx, run.ID, model.RunStatusCompleted, ""); err != nil {
		return results, fmt.Errorf("finish run: %w", err)
	}
	metrics.ExperimentRuns.WithLabelValues(model.RunStatusCompleted).Inc()
	d.publish(run.ID, progress.EventRunCompleted, map[string]any{"results": len(results)})
	log.Info("run completed", "results", len(results))
	return results, nil
}

// Run is Start followed by Execute.
func (d *Driver) Run(ctx context.Context, req model.ExperimentRequest) (model.Run, error) {
	run, err := d.Start(ctx, req)
	if err != nil {
		return run, err
	}
	if _, err := d.Execute(ctx, run); err != nil {
		return run, err
	}
	return d.store.GetRun(ctx, run.ID)
}

func (d *Driver) execute(ctx context.Context, log *slog.Logger, run model.Run) ([]model.AlgoResult, error) {
	req := run.Request
	opts, err := OptionsFor(req)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if req.TrialRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(req.TrialRate), 1)
	}

	var results []model.AlgoResult
	for si, sweep := range req.Sweeps {
		for _, g := range sweep {
			log.Info("cell started", "sweep", si, "n", g.N, "k", g.K)
			for _, algo := range req.Algorithms {
				if err := ctx.Err(); err != nil {
					return results, err
				}
				res, err := d.cell(ctx, run.ID, algo, si, g, req.Trials, opts, limiter)
				if err != nil {
					return results, fmt.Errorf("%s n=%d k=%d: %w", algo, g.N, g.K, err)
				}
				if err := d.store.AppendResults(ctx, run.ID, []model.AlgoResult{res}); err != nil {
					return results, fmt.Errorf("store result: %w", err)
				}
				results = append(results, res)
				d.publish(run.ID, progress.EventCellCompleted, map[string]any{"result": res})
			}
		}
	}
	return results, nil
}

type trialResult struct {
	latency  float64
	workload float64
	stats    *placement.SolveStats
}

// cell evaluates one algorithm on one grid point. Stochastic placers run
// trials concurrently with seed Seed+trial; averages are summed in trial
// order so results do not depend on scheduling.
func (d *Driver) cell(ctx context.Context, runID, algo string, sweep int, g model.GridPoint, trials int, opts Options, limiter *rate.Limiter) (model.AlgoResult, error) {
	if !stochastic[algo] {
		trials = 1
	}
	start := time.Now()
	out := make([]trialResult, trials)

	eg, ectx := errgroup.WithContext(ctx)
	if d.parallelism > 0 {
		eg.SetLimit(d.parallelism)
	}
	var waitErr error
	for t := 0; t < trials; t++ {
		if limiter != nil {
			if waitErr = limiter.Wait(ectx); waitErr != nil {
				break
			}
		}
		if ectx.Err() != nil {
			break
		}
		eg.Go(func() error {
			r, err := d.trial(ectx, algo, g, opts, opts.Seed+int64(t))
			if err != nil {
				return err
			}
			out[t] = r
			d.publish(runID, progress.EventTrialCompleted, map[string]any{
				"sweep": sweep, "algorithm": algo, "n": g.N, "k": g.K, "trial": t,
				"latencyKm": r.latency, "workloadStdDev": r.workload,
			})
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return model.AlgoResult{}, err
	}
	if waitErr != nil {
		return model.AlgoResult{}, waitErr
	}
	if err := ctx.Err(); err != nil {
		return model.AlgoResult{}, err
	}

	res := model.AlgoResult{Sweep: sweep, Algorithm: algo, N: g.N, K: g.K, Trials: trials}
	for _, r := range out {
		res.Latency += r.latency
		res.Workload += r.workload
	}
	res.Latency /= float64(trials)
	res.Workload /= float64(trials)
	res.ElapsedMs = time.Since(start).Milliseconds()
	if st := out[0].stats; st != nil {
		optimal := st.Optimal
		res.Optimal = &optimal
		res.Gap = st.Gap
	}
	return res, nil
}

func (d *Driver) trial(ctx context.Context, algo string, g model.GridPoint, opts Options, seed int64) (trialResult, error) {
	if err := ctx.Err(); err != nil {
		return trialResult{}, err
	}
	p, err := NewPlacer(algo, d.points, d.dist, opts)
	if err != nil {
		return trialResult{}, err
	}
	if s, ok := p.(placement.Seeder); ok {
		s.Reseed(seed)
	}

	start := time.Now()
	err = p.PlaceServer(g.N, g.K)
	metrics.PlacementDuration.WithLabelValues(algo).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PlacementRuns.WithLabelValues(algo, "error").Inc()
		return trialResult{}, err
	}
	metrics.PlacementRuns.WithLabelValues(algo, "ok").Inc()

	var r trialResult
	if r.latency, err = p.ObjectiveLatency(); err != nil {
		return r, err
	}
	if r.workload, err = p.ObjectiveWorkload(); err != nil {
		return r, err
	}
	if e, ok := p.(*placement.Exact); ok {
		st := e.Stats()
		r.stats = &st
		if !st.Optimal {
			metrics.ExactSuboptimal.WithLabelValues(st.StopReason).Inc()
			d.log.Warn("exact placement not proven optimal",
				"n", g.N, "k", g.K, "gap", st.Gap, "stop", st.StopReason, "nodes", st.Nodes)
		}
	}
	return r, nil
}

func (d *Driver) publish(runID, typ string, data map[string]any) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(runID, progress.Event{Type: typ, RunID: runID, At: time.Now().UTC(), Data: data})
}

// IsCanceled reports whether err came from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
