package placement

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/model"
)

type RandomConfig struct {
	Sampling Sampling
	Seed     int64
}

// Random is the baseline: k uniformly sampled sites, nearest-site assignment.
// Each PlaceServer call is one trial drawn from the placer's own stream.
type Random struct {
	points []model.DemandPoint
	dist   mat.Symmetric
	cfg    RandomConfig
	rng    *rand.Rand
	placed *Placement
}

func NewRandom(points []model.DemandPoint, dist mat.Symmetric, cfg RandomConfig) *Random {
	return &Random{points: points, dist: dist, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

func (r *Random) Name() string { return "random" }

func (r *Random) Reseed(seed int64) { r.rng = rand.New(rand.NewSource(seed)) }

func (r *Random) PlaceServer(n, k int) error {
	r.placed = nil
	if err := validate(n, k, len(r.points)); err != nil {
		return err
	}
	ids := r.cfg.Sampling.Select(len(r.points), n)
	sites := make([]int, k)
	for i, j := range r.rng.Perm(n)[:k] {
		sites[i] = ids[j]
	}
	r.placed = &Placement{Points: ids, Sites: sites, Assign: assignNearest(r.dist, ids, sites)}
	return nil
}

func (r *Random) ObjectiveLatency() (float64, error) { return objectiveLatency(r.placed, r.dist) }

func (r *Random) ObjectiveWorkload() (float64, error) {
	return objectiveWorkload(r.placed, r.points)
}

func (r *Random) Placement() (Placement, error) { return clonePlacement(r.placed) }
