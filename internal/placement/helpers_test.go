package placement

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/geo"
	"edgeplace/internal/model"
)

// scatter returns n points spread over a ~50 km box with varied workloads.
func scatter(t *testing.T, n int, seed int64) ([]model.DemandPoint, *mat.SymDense) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pts := make([]model.DemandPoint, n)
	for i := range pts {
		pts[i] = model.DemandPoint{
			ID:        i,
			Latitude:  31 + rng.Float64()*0.5,
			Longitude: 121 + rng.Float64()*0.5,
			UserNum:   1 + rng.Intn(50),
			Workload:  float64(10 + rng.Intn(500)),
		}
	}
	d, err := geo.DistanceMatrix(pts)
	if err != nil {
		t.Fatalf("distance matrix: %v", err)
	}
	return pts, d
}

// line returns n points on a line at 1 km spacing with workload 1 each.
func line(n int) ([]model.DemandPoint, *mat.SymDense) {
	pts := make([]model.DemandPoint, n)
	d := mat.NewSymDense(n, nil)
	for i := range pts {
		pts[i] = model.DemandPoint{ID: i, Longitude: float64(i) * 0.009, UserNum: 1, Workload: 1}
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, float64(j-i))
		}
	}
	return pts, d
}

// bruteForce enumerates every k-subset of the first n points and returns the
// smallest total distance under nearest-site assignment.
func bruteForce(dist mat.Symmetric, n, k int) float64 {
	best := math.Inf(1)
	open := make([]int, 0, k)
	var rec func(start int)
	rec = func(start int) {
		if len(open) == k {
			total := 0.0
			for i := 0; i < n; i++ {
				m := math.Inf(1)
				for _, j := range open {
					m = math.Min(m, dist.At(i, j))
				}
				total += m
			}
			best = math.Min(best, total)
			return
		}
		for j := start; j < n; j++ {
			open = append(open, j)
			rec(j + 1)
			open = open[:len(open)-1]
		}
	}
	rec(0)
	return best
}

type factory func(pts []model.DemandPoint, d mat.Symmetric) Placer

func factories() map[string]factory {
	return map[string]factory{
		"exact": func(pts []model.DemandPoint, d mat.Symmetric) Placer {
			return NewExact(pts, d, ExactConfig{TimeBudget: 2 * time.Second})
		},
		"kmeans": func(pts []model.DemandPoint, d mat.Symmetric) Placer {
			return NewKMeans(pts, d, KMeansConfig{Seed: 7})
		},
		"topk": func(pts []model.DemandPoint, d mat.Symmetric) Placer {
			return NewTopK(pts, d, TopKConfig{})
		},
		"random": func(pts []model.DemandPoint, d mat.Symmetric) Placer {
			return NewRandom(pts, d, RandomConfig{Seed: 7})
		},
	}
}
