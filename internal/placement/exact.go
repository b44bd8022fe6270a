package placement

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/model"
)

const (
	DefaultExactTimeBudget = 10 * time.Second
	DefaultLPBoundMaxSites = 12

	// deadline and node limit are polled at most every checkEvery search nodes
	checkEvery = 256
	// roughly this many distance lookups happen between deadline polls
	checkWork = 1 << 22
	// candidate sites evaluated between deadline polls in greedy and swap
	candidateCheckEvery = 16
	eps                 = 1e-9

	// fractions of the time budget after which the heuristic phase and the
	// Lagrangian bound stop, leaving the rest for the bound and the search
	heuristicShare = 0.4
	boundShare     = 0.7
)

// Stop reasons reported in SolveStats.
const (
	StopComplete   = "complete"
	StopTimeBudget = "time_budget"
	StopNodeLimit  = "node_limit"
	StopRootBound  = "root_bound"
)

type ExactConfig struct {
	Sampling Sampling
	// TimeBudget caps the search; the best incumbent is returned when it runs out.
	TimeBudget time.Duration
	// NodeLimit caps the number of search nodes, 0 means unlimited.
	NodeLimit int
	// GapTolerance prunes subtrees whose bound is within this relative gap of
	// the incumbent.
	GapTolerance float64
	// LPBoundMaxSites is the largest n for which the LP relaxation is solved at
	// the root. 0 selects DefaultLPBoundMaxSites, negative disables it.
	LPBoundMaxSites int
}

// SolveStats describes how the last exact placement was obtained. Objective
// and LowerBound are mean km so they compare directly with ObjectiveLatency.
type SolveStats struct {
	Optimal    bool
	Gap        float64
	Objective  float64
	LowerBound float64
	LPBound    bool
	Nodes      int
	Elapsed    time.Duration
	StopReason string
}

// Exact solves the p-median formulation: open exactly k of the n considered
// sites and assign each point to an open site minimising total distance. For a
// fixed set of open sites nearest-site assignment is optimal, so the search
// branches on sites only. Workload balance is reported but not optimised.
type Exact struct {
	points []model.DemandPoint
	dist   mat.Symmetric
	cfg    ExactConfig
	placed *Placement
	stats  SolveStats
}

func NewExact(points []model.DemandPoint, dist mat.Symmetric, cfg ExactConfig) *Exact {
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = DefaultExactTimeBudget
	}
	if cfg.LPBoundMaxSites == 0 {
		cfg.LPBoundMaxSites = DefaultLPBoundMaxSites
	}
	if cfg.GapTolerance < 0 {
		cfg.GapTolerance = 0
	}
	return &Exact{points: points, dist: dist, cfg: cfg}
}

func (e *Exact) Name() string { return "exact" }

func (e *Exact) PlaceServer(n, k int) error {
	e.placed = nil
	e.stats = SolveStats{}
	if err := validate(n, k, len(e.points)); err != nil {
		return err
	}
	start := time.Now()
	ids := e.cfg.Sampling.Select(len(e.points), n)
	s := newSearch(localDistances(e.dist, ids), n, k, e.cfg, start)
	open, stats := s.solve()
	stats.Elapsed = time.Since(start)

	sites := make([]int, len(open))
	for i, j := range open {
		sites[i] = ids[j]
	}
	e.placed = &Placement{Points: ids, Sites: sites, Assign: assignNearest(e.dist, ids, sites)}
	e.stats = stats
	return nil
}

func (e *Exact) ObjectiveLatency() (float64, error) { return objectiveLatency(e.placed, e.dist) }

func (e *Exact) ObjectiveWorkload() (float64, error) {
	return objectiveWorkload(e.placed, e.points)
}

func (e *Exact) Placement() (Placement, error) { return clonePlacement(e.placed) }

// Config returns the effective configuration after defaults.
func (e *Exact) Config() ExactConfig { return e.cfg }

// Stats reports optimality of the last placement.
func (e *Exact) Stats() SolveStats { return e.stats }

// localDistances copies the considered rows of dist into a flat n×n slice.
func localDistances(dist mat.Symmetric, ids []int) []float64 {
	n := len(ids)
	d := make([]float64, n*n)
	for i, a := range ids {
		for j, b := range ids {
			d[i*n+j] = dist.At(a, b)
		}
	}
	return d
}

// search is a depth-first branch-and-bound over site open/close decisions.
type search struct {
	n, k      int
	d         []float64 // d[i*n+j]
	order     []int     // branching order of candidate sites
	suffix    []float64 // suffix[p*n+i]: min distance from i to any site in order[p:]
	cfg       ExactConfig
	deadline  time.Time
	heurEnd   time.Time // greedy and swap stop here
	boundEnd  time.Time // the Lagrangian bound stops here
	pollEvery int
	nodes     int
	stop      string
	open      []int
	bufs      [][]float64 // per-depth per-point distance to the nearest open site
	savings   []float64
	best      float64
	bestOpen  []int
	rootBound float64
	lpBound   bool
}

func newSearch(d []float64, n, k int, cfg ExactConfig, start time.Time) *search {
	s := &search{
		n:        n,
		k:        k,
		d:        d,
		cfg:      cfg,
		deadline: start.Add(cfg.TimeBudget),
		heurEnd:  start.Add(time.Duration(float64(cfg.TimeBudget) * heuristicShare)),
		boundEnd: start.Add(time.Duration(float64(cfg.TimeBudget) * boundShare)),
		open:     make([]int, 0, k),
		bufs:     make([][]float64, k+1),
		savings:  make([]float64, 0, n),
		best:     math.Inf(1),
	}
	// each node's bound touches up to n*n distances
	s.pollEvery = min(checkEvery, max(1, checkWork/max(1, n*n)))
	for i := range s.bufs {
		s.bufs[i] = make([]float64, n)
	}
	return s
}

func (s *search) solve() ([]int, SolveStats) {
	n, k := s.n, s.k
	s.bestOpen = s.greedy()
	s.bestOpen = s.swapImprove(s.bestOpen)
	s.best = s.cost(s.bestOpen)

	s.rootBound = s.lagrangianBound(s.best)
	if s.best > s.rootBound+eps && n <= s.cfg.LPBoundMaxSites {
		if lb, err := lpLowerBound(s.d, n, k); err == nil && lb > s.rootBound {
			s.rootBound = lb
			s.lpBound = true
		}
	}

	switch {
	case s.best <= s.rootBound+eps:
		s.stop = StopRootBound
	case time.Now().After(s.deadline):
		s.stop = StopTimeBudget
	default:
		s.prepareOrder()
		cur := s.bufs[0]
		for i := range cur {
			cur[i] = math.Inf(1)
		}
		s.branch(0, cur, math.Inf(1))
	}

	stats := SolveStats{
		Objective:  s.best / float64(n),
		LowerBound: math.Min(s.rootBound, s.best) / float64(n),
		LPBound:    s.lpBound,
		Nodes:      s.nodes,
		StopReason: s.stop,
	}
	switch s.stop {
	case "":
		stats.StopReason = StopComplete
		if s.cfg.GapTolerance > 0 {
			stats.Gap = math.Min(s.cfg.GapTolerance, relGap(s.best, s.rootBound))
		}
		stats.Optimal = stats.Gap <= eps
	case StopRootBound:
		stats.Optimal = true
	default:
		stats.Gap = relGap(s.best, s.rootBound)
		stats.Optimal = stats.Gap <= eps
	}
	if stats.Optimal {
		stats.Gap = 0
		stats.LowerBound = stats.Objective
	}
	open := append([]int(nil), s.bestOpen...)
	sort.Ints(open)
	return open, stats
}

func relGap(best, bound float64) float64 {
	if best <= eps {
		return 0
	}
	return math.Max(0, (best-bound)/best)
}

func (s *search) cost(open []int) float64 {
	total := 0.0
	for i := 0; i < s.n; i++ {
		m := math.Inf(1)
		for _, j := range open {
			m = math.Min(m, s.d[i*s.n+j])
		}
		total += m
	}
	return total
}

// greedy opens, k times, the site giving the largest drop in total distance.
// Once the heuristic share of the budget is spent the remaining sites are
// filled with the worst-served points.
func (s *search) greedy() []int {
	n := s.n
	cur := make([]float64, n)
	for i := range cur {
		cur[i] = math.Inf(1)
	}
	used := make([]bool, n)
	open := make([]int, 0, s.k)
	for len(open) < s.k {
		bestJ, bestCost := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if j%candidateCheckEvery == 0 && time.Now().After(s.heurEnd) {
				return s.fillFarthest(open, used, cur)
			}
			if used[j] {
				continue
			}
			c := 0.0
			for i := 0; i < n; i++ {
				c += math.Min(cur[i], s.d[i*n+j])
			}
			if c < bestCost {
				bestJ, bestCost = j, c
			}
		}
		used[bestJ] = true
		open = append(open, bestJ)
		for i := 0; i < n; i++ {
			cur[i] = math.Min(cur[i], s.d[i*n+bestJ])
		}
	}
	return open
}

// fillFarthest opens the point farthest from any open site until k are open.
func (s *search) fillFarthest(open []int, used []bool, cur []float64) []int {
	n := s.n
	for len(open) < s.k {
		far := -1
		for i := 0; i < n; i++ {
			if !used[i] && (far < 0 || cur[i] > cur[far]) {
				far = i
			}
		}
		used[far] = true
		open = append(open, far)
		for i := 0; i < n; i++ {
			cur[i] = math.Min(cur[i], s.d[i*n+far])
		}
	}
	return open
}

// nearestTwo records, per point, the position in open of its nearest site and
// the distances to its nearest and second nearest sites.
func (s *search) nearestTwo(open []int, near []int, d1, d2 []float64) {
	n := s.n
	for i := 0; i < n; i++ {
		near[i], d1[i], d2[i] = -1, math.Inf(1), math.Inf(1)
		for a, j := range open {
			switch v := s.d[i*n+j]; {
			case v < d1[i]:
				d2[i], d1[i], near[i] = d1[i], v, a
			case v < d2[i]:
				d2[i] = v
			}
		}
	}
}

// swapImprove replaces open sites by closed ones while the total improves or
// the heuristic share of the budget runs out. A candidate j is scored against
// every open site at once from the nearest and second nearest distances.
func (s *search) swapImprove(open []int) []int {
	n := s.n
	open = append([]int(nil), open...)
	isOpen := make([]bool, n)
	for _, j := range open {
		isOpen[j] = true
	}
	near := make([]int, n)
	d1 := make([]float64, n)
	d2 := make([]float64, n)
	loss := make([]float64, len(open))
	s.nearestTwo(open, near, d1, d2)

	evals := 0
	for improved := true; improved; {
		improved = false
		for j := 0; j < n; j++ {
			if isOpen[j] {
				continue
			}
			if evals%candidateCheckEvery == 0 && time.Now().After(s.heurEnd) {
				return open
			}
			evals++
			// gain: points moving to j whichever site closes
			// loss[a]: extra cost for the others if open[a] closes
			gain := 0.0
			for a := range loss {
				loss[a] = 0
			}
			for i := 0; i < n; i++ {
				v := s.d[i*n+j]
				if v < d1[i] {
					gain += d1[i] - v
					continue
				}
				loss[near[i]] += math.Min(d2[i], v) - d1[i]
			}
			bestA, bestDelta := -1, -eps
			for a, l := range loss {
				if delta := l - gain; delta < bestDelta {
					bestA, bestDelta = a, delta
				}
			}
			if bestA < 0 {
				continue
			}
			isOpen[open[bestA]], isOpen[j] = false, true
			open[bestA] = j
			s.nearestTwo(open, near, d1, d2)
			improved = true
		}
	}
	return open
}

// lagrangianBound relaxes the assignment constraints with multipliers lambda
// and improves them by subgradient steps. Every evaluated L(lambda) is a valid
// lower bound on the optimal total distance.
func (s *search) lagrangianBound(upper float64) float64 {
	n, k := s.n, s.k
	lambda := make([]float64, n)
	for i := 0; i < n; i++ {
		m := math.Inf(1)
		for j := 0; j < n; j++ {
			if j != i {
				m = math.Min(m, s.d[i*n+j])
			}
		}
		if math.IsInf(m, 1) {
			m = 0
		}
		lambda[i] = m
	}
	rho := make([]float64, n)
	idx := make([]int, n)
	sub := make([]float64, n)
	best := 0.0
	theta := 2.0
	stale := 0
	for it := 0; it < 300; it++ {
		// the first iteration always runs so the bound is never trivial
		if it > 0 && time.Now().After(s.boundEnd) {
			break
		}
		for j := 0; j < n; j++ {
			r := 0.0
			for i := 0; i < n; i++ {
				if v := s.d[i*n+j] - lambda[i]; v < 0 {
					r += v
				}
			}
			rho[j] = r
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return rho[idx[a]] < rho[idx[b]] })
		l := 0.0
		for _, v := range lambda {
			l += v
		}
		for _, j := range idx[:k] {
			l += rho[j]
		}
		if l > best+eps {
			best = l
			stale = 0
		} else if stale++; stale >= 20 {
			theta /= 2
			stale = 0
		}
		if upper-best <= eps || theta < 1e-4 {
			break
		}
		norm := 0.0
		for i := 0; i < n; i++ {
			sub[i] = 1
			for _, j := range idx[:k] {
				if s.d[i*n+j]-lambda[i] < 0 {
					sub[i]--
				}
			}
			norm += sub[i] * sub[i]
		}
		if norm == 0 {
			break
		}
		step := theta * (upper - l) / norm
		for i := 0; i < n; i++ {
			lambda[i] += step * sub[i]
		}
	}
	return best
}

// prepareOrder branches on sites with the smallest total distance first and
// precomputes suffix minima for the bound.
func (s *search) prepareOrder() {
	n := s.n
	score := make([]float64, n)
	s.order = make([]int, n)
	for j := 0; j < n; j++ {
		s.order[j] = j
		for i := 0; i < n; i++ {
			score[j] += s.d[i*n+j]
		}
	}
	sort.SliceStable(s.order, func(a, b int) bool { return score[s.order[a]] < score[s.order[b]] })

	s.suffix = make([]float64, (n+1)*n)
	for i := 0; i < n; i++ {
		s.suffix[n*n+i] = math.Inf(1)
	}
	for p := n - 1; p >= 0; p-- {
		j := s.order[p]
		for i := 0; i < n; i++ {
			s.suffix[p*n+i] = math.Min(s.d[i*n+j], s.suffix[(p+1)*n+i])
		}
	}
}

func (s *search) exhausted() bool {
	if s.stop != "" {
		return true
	}
	s.nodes++
	if s.cfg.NodeLimit > 0 && s.nodes >= s.cfg.NodeLimit {
		s.stop = StopNodeLimit
		return true
	}
	if (s.nodes-1)%s.pollEvery == 0 && time.Now().After(s.deadline) {
		s.stop = StopTimeBudget
		return true
	}
	return false
}

// branch explores order[p:] given the current open set. cur[i] is the
// distance from i to its nearest open site and total their sum.
func (s *search) branch(p int, cur []float64, total float64) {
	if s.exhausted() {
		return
	}
	if len(s.open) == s.k {
		if total < s.best-eps {
			s.best = total
			s.bestOpen = append(s.bestOpen[:0], s.open...)
		}
		return
	}
	need := s.k - len(s.open)
	if s.n-p < need {
		return
	}
	if s.bound(p, cur, total, need) >= s.best*(1-s.cfg.GapTolerance)-eps {
		return
	}

	j := s.order[p]
	next := s.bufs[len(s.open)+1]
	nextTotal := 0.0
	for i := 0; i < s.n; i++ {
		next[i] = math.Min(cur[i], s.d[i*s.n+j])
		nextTotal += next[i]
	}
	s.open = append(s.open, j)
	s.branch(p+1, next, nextTotal)
	s.open = s.open[:len(s.open)-1]

	if s.n-p-1 >= need {
		s.branch(p+1, cur, total)
	}
}

// bound is a lower bound on any completion of the current node: every point
// is served at best by an open or undecided site, and the remaining need sites
// can save at most the sum of their individual savings.
func (s *search) bound(p int, cur []float64, total float64, need int) float64 {
	n := s.n
	lb := 0.0
	row := s.suffix[p*n : (p+1)*n]
	for i := 0; i < n; i++ {
		lb += math.Min(cur[i], row[i])
	}
	if len(s.open) == 0 {
		return lb
	}
	s.savings = s.savings[:0]
	for _, j := range s.order[p:] {
		sv := 0.0
		for i := 0; i < n; i++ {
			if v := cur[i] - s.d[i*n+j]; v > 0 {
				sv += v
			}
		}
		s.savings = append(s.savings, sv)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(s.savings)))
	top := 0.0
	for _, v := range s.savings[:need] {
		top += v
	}
	return math.Max(lb, total-top)
}
