package placement

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/model"
)

type RankBy string

const (
	RankByWorkload RankBy = "workload"
	RankByUsers    RankBy = "users"
)

func ParseRankBy(s string) (RankBy, error) {
	switch RankBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RankByWorkload:
		return RankByWorkload, nil
	case RankByUsers:
		return RankByUsers, nil
	}
	return "", fmt.Errorf("unknown rank key %q (allowed: workload, users)", s)
}

type TopKConfig struct {
	Sampling Sampling
	RankBy   RankBy
}

// TopK opens the k busiest considered sites and serves every other point from
// its nearest one. It is deterministic for a fixed input order.
type TopK struct {
	points []model.DemandPoint
	dist   mat.Symmetric
	cfg    TopKConfig
	placed *Placement
}

func NewTopK(points []model.DemandPoint, dist mat.Symmetric, cfg TopKConfig) *TopK {
	if cfg.RankBy == "" {
		cfg.RankBy = RankByWorkload
	}
	return &TopK{points: points, dist: dist, cfg: cfg}
}

func (t *TopK) Name() string { return "topk" }

func (t *TopK) PlaceServer(n, k int) error {
	t.placed = nil
	if err := validate(n, k, len(t.points)); err != nil {
		return err
	}
	ids := t.cfg.Sampling.Select(len(t.points), n)
	ranked := append([]int(nil), ids...)
	key := func(id int) float64 {
		if t.cfg.RankBy == RankByUsers {
			return float64(t.points[id].UserNum)
		}
		return t.points[id].Workload
	}
	sort.SliceStable(ranked, func(a, b int) bool { return key(ranked[a]) > key(ranked[b]) })
	sites := ranked[:k:k]
	t.placed = &Placement{Points: ids, Sites: sites, Assign: assignNearest(t.dist, ids, sites)}
	return nil
}

func (t *TopK) ObjectiveLatency() (float64, error) { return objectiveLatency(t.placed, t.dist) }

func (t *TopK) ObjectiveWorkload() (float64, error) {
	return objectiveWorkload(t.placed, t.points)
}

func (t *TopK) Placement() (Placement, error) { return clonePlacement(t.placed) }
