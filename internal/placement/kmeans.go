package placement

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/model"
)

const DefaultKMeansMaxIterations = 300

type KMeansConfig struct {
	Sampling      Sampling
	Seed          int64
	MaxIterations int
}

// KMeans clusters the considered points by coordinates and serves each
// cluster from the member closest to its centroid. Results depend on the
// random stream, so a single run is one trial.
type KMeans struct {
	points     []model.DemandPoint
	dist       mat.Symmetric
	cfg        KMeansConfig
	rng        *rand.Rand
	placed     *Placement
	iterations int
}

func NewKMeans(points []model.DemandPoint, dist mat.Symmetric, cfg KMeansConfig) *KMeans {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultKMeansMaxIterations
	}
	return &KMeans{points: points, dist: dist, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

func (m *KMeans) Name() string { return "kmeans" }

func (m *KMeans) Reseed(seed int64) { m.rng = rand.New(rand.NewSource(seed)) }

// Iterations is the number of Lloyd iterations the last placement ran.
func (m *KMeans) Iterations() int { return m.iterations }

func (m *KMeans) PlaceServer(n, k int) error {
	m.placed = nil
	if err := validate(n, k, len(m.points)); err != nil {
		return err
	}
	ids := m.cfg.Sampling.Select(len(m.points), n)
	xs := make([][2]float64, n)
	for i, id := range ids {
		xs[i] = [2]float64{m.points[id].Latitude, m.points[id].Longitude}
	}
	cluster, centroids := m.cluster(xs, k)

	// member closest to each centroid, ties to the lower ID
	sites := make([]int, k)
	best := make([]float64, k)
	for c := range best {
		best[c] = math.Inf(1)
		sites[c] = -1
	}
	for i, c := range cluster {
		d := sqDist(xs[i], centroids[c])
		if d < best[c] || (d == best[c] && ids[i] < sites[c]) {
			best[c] = d
			sites[c] = ids[i]
		}
	}
	assign := make([]int, n)
	for i, c := range cluster {
		assign[i] = sites[c]
	}
	m.placed = &Placement{Points: ids, Sites: sites, Assign: assign}
	return nil
}

func (m *KMeans) ObjectiveLatency() (float64, error) { return objectiveLatency(m.placed, m.dist) }

func (m *KMeans) ObjectiveWorkload() (float64, error) {
	return objectiveWorkload(m.placed, m.points)
}

func (m *KMeans) Placement() (Placement, error) { return clonePlacement(m.placed) }

// cluster runs k-means++ seeding and Lloyd iterations. Every returned cluster
// is non-empty.
func (m *KMeans) cluster(xs [][2]float64, k int) ([]int, [][2]float64) {
	n := len(xs)
	centroids := m.seed(xs, k)
	cluster := make([]int, n)
	for i := range cluster {
		cluster[i] = -1
	}
	size := make([]int, k)
	m.iterations = 0
	for it := 0; it < m.cfg.MaxIterations; it++ {
		m.iterations++
		changed := false
		for c := range size {
			size[c] = 0
		}
		for i, x := range xs {
			bc, bd := 0, sqDist(x, centroids[0])
			for c := 1; c < k; c++ {
				if d := sqDist(x, centroids[c]); d < bd {
					bc, bd = c, d
				}
			}
			if cluster[i] != bc {
				cluster[i] = bc
				changed = true
			}
			size[bc]++
		}
		if fillEmpty(xs, cluster, size, centroids) {
			changed = true
		}
		updateCentroids(xs, cluster, size, centroids)
		if !changed {
			break
		}
	}
	return cluster, centroids
}

// seed picks k initial centroids with k-means++ (D² weighting). When every
// remaining point coincides with a chosen centroid it falls back to a uniform
// pick among unchosen points.
func (m *KMeans) seed(xs [][2]float64, k int) [][2]float64 {
	n := len(xs)
	chosen := make([]bool, n)
	first := m.rng.Intn(n)
	chosen[first] = true
	centroids := [][2]float64{xs[first]}
	d2 := make([]float64, n)
	for i, x := range xs {
		d2[i] = sqDist(x, xs[first])
	}
	for len(centroids) < k {
		total := 0.0
		for i := range xs {
			if !chosen[i] {
				total += d2[i]
			}
		}
		pick := -1
		if total > 0 {
			r := m.rng.Float64() * total
			acc := 0.0
			for i := range xs {
				if chosen[i] || d2[i] == 0 {
					continue
				}
				pick = i
				acc += d2[i]
				if r < acc {
					break
				}
			}
		} else {
			var free []int
			for i := range xs {
				if !chosen[i] {
					free = append(free, i)
				}
			}
			pick = free[m.rng.Intn(len(free))]
		}
		chosen[pick] = true
		centroids = append(centroids, xs[pick])
		for i, x := range xs {
			d2[i] = math.Min(d2[i], sqDist(x, xs[pick]))
		}
	}
	return centroids
}

// fillEmpty moves, for each empty cluster, the point farthest from its own
// centroid out of a cluster with at least two members. k <= n guarantees a
// donor exists. It reports whether any point moved.
func fillEmpty(xs [][2]float64, cluster, size []int, centroids [][2]float64) bool {
	moved := false
	for c := range size {
		if size[c] > 0 {
			continue
		}
		donor, far := -1, -1.0
		for i, x := range xs {
			if size[cluster[i]] < 2 {
				continue
			}
			if d := sqDist(x, centroids[cluster[i]]); d > far {
				donor, far = i, d
			}
		}
		size[cluster[donor]]--
		cluster[donor] = c
		size[c] = 1
		centroids[c] = xs[donor]
		moved = true
	}
	return moved
}

func updateCentroids(xs [][2]float64, cluster, size []int, centroids [][2]float64) {
	sum := make([][2]float64, len(centroids))
	for i, x := range xs {
		c := cluster[i]
		sum[c][0] += x[0]
		sum[c][1] += x[1]
	}
	for c := range centroids {
		if size[c] == 0 {
			continue
		}
		centroids[c] = [2]float64{sum[c][0] / float64(size[c]), sum[c][1] / float64(size[c])}
	}
}

func sqDist(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}
