package placement

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"edgeplace/internal/model"
)

// Placer is the contract shared by every placement strategy.
type Placer interface {
	Name() string
	// PlaceServer considers n demand points and places k servers among them.
	PlaceServer(n, k int) error
	// ObjectiveLatency returns the mean point-to-site distance in km.
	ObjectiveLatency() (float64, error)
	// ObjectiveWorkload returns the standard deviation of per-site aggregate workload.
	ObjectiveWorkload() (float64, error)
	// Placement returns a copy of the last successful placement.
	Placement() (Placement, error)
}

// Seeder is implemented by placers whose result depends on a random stream.
type Seeder interface {
	Reseed(seed int64)
}

var (
	ErrInvalidParams = errors.New("invalid placement parameters")
	ErrUnplaced      = errors.New("objective queried before a successful placement")
)

// Placement maps every considered demand point to the site serving it. All
// values are DemandPoint IDs.
type Placement struct {
	Points []int // considered points
	Sites  []int // opened server sites
	Assign []int // Assign[i] serves Points[i]
}

func (p Placement) Clone() Placement {
	return Placement{
		Points: append([]int(nil), p.Points...),
		Sites:  append([]int(nil), p.Sites...),
		Assign: append([]int(nil), p.Assign...),
	}
}

// Check verifies the placement invariants for k servers.
func (p Placement) Check(k int) error {
	if len(p.Assign) != len(p.Points) {
		return fmt.Errorf("%d assignments for %d points", len(p.Assign), len(p.Points))
	}
	considered := make(map[int]bool, len(p.Points))
	for _, id := range p.Points {
		if considered[id] {
			return fmt.Errorf("point %d considered twice", id)
		}
		considered[id] = true
	}
	sites := make(map[int]bool, len(p.Sites))
	for _, s := range p.Sites {
		if !considered[s] {
			return fmt.Errorf("site %d is not a considered point", s)
		}
		sites[s] = true
	}
	if len(sites) != k || len(p.Sites) != k {
		return fmt.Errorf("want %d distinct sites, got %d of %d", k, len(sites), len(p.Sites))
	}
	for i, s := range p.Assign {
		if !sites[s] {
			return fmt.Errorf("point %d assigned to %d which is not a site", p.Points[i], s)
		}
		if sites[p.Points[i]] && s != p.Points[i] {
			return fmt.Errorf("site %d assigned to %d instead of itself", p.Points[i], s)
		}
	}
	return nil
}

// Latency is the mean distance between each considered point and its site.
func Latency(p Placement, dist mat.Symmetric) float64 {
	if len(p.Points) == 0 {
		return 0
	}
	ds := make([]float64, len(p.Points))
	for i, id := range p.Points {
		ds[i] = dist.At(id, p.Assign[i])
	}
	return stat.Mean(ds, nil)
}

// SiteLoads sums the workload of the points served by each site, in Sites order.
func SiteLoads(p Placement, points []model.DemandPoint) []float64 {
	idx := make(map[int]int, len(p.Sites))
	for i, s := range p.Sites {
		idx[s] = i
	}
	loads := make([]float64, len(p.Sites))
	for i, id := range p.Points {
		loads[idx[p.Assign[i]]] += points[id].Workload
	}
	return loads
}

// WorkloadStdDev is the population standard deviation of SiteLoads.
func WorkloadStdDev(p Placement, points []model.DemandPoint) float64 {
	loads := SiteLoads(p, points)
	if len(loads) == 0 {
		return 0
	}
	return stat.PopStdDev(loads, nil)
}

func validate(n, k, total int) error {
	switch {
	case k < 1:
		return fmt.Errorf("%w: k=%d must be at least 1", ErrInvalidParams, k)
	case k > n:
		return fmt.Errorf("%w: k=%d exceeds n=%d", ErrInvalidParams, k, n)
	case n > total:
		return fmt.Errorf("%w: n=%d exceeds the %d available demand points", ErrInvalidParams, n, total)
	}
	return nil
}

// assignNearest maps each considered point to its closest site. Sites serve
// themselves; distance ties go to the site listed first.
func assignNearest(dist mat.Symmetric, considered, sites []int) []int {
	isSite := make(map[int]bool, len(sites))
	for _, s := range sites {
		isSite[s] = true
	}
	assign := make([]int, len(considered))
	for i, id := range considered {
		if isSite[id] {
			assign[i] = id
			continue
		}
		best, bestD := sites[0], dist.At(id, sites[0])
		for _, s := range sites[1:] {
			if d := dist.At(id, s); d < bestD {
				best, bestD = s, d
			}
		}
		assign[i] = best
	}
	return assign
}

// objectiveLatency and objectiveWorkload fail with ErrUnplaced until a placement is stored.
func objectiveLatency(p *Placement, dist mat.Symmetric) (float64, error) {
	if p == nil {
		return 0, ErrUnplaced
	}
	return Latency(*p, dist), nil
}

func objectiveWorkload(p *Placement, points []model.DemandPoint) (float64, error) {
	if p == nil {
		return 0, ErrUnplaced
	}
	return WorkloadStdDev(*p, points), nil
}

func clonePlacement(p *Placement) (Placement, error) {
	if p == nil {
		return Placement{}, ErrUnplaced
	}
	return p.Clone(), nil
}
