package placement

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeplace/internal/geo"
	"edgeplace/internal/model"
)

func TestKMeansSameSeedSamePlacement(t *testing.T) {
	pts, d := scatter(t, 40, 21)
	a := NewKMeans(pts, d, KMeansConfig{Seed: 1234})
	b := NewKMeans(pts, d, KMeansConfig{Seed: 1234})
	require.NoError(t, a.PlaceServer(40, 5))
	require.NoError(t, b.PlaceServer(40, 5))

	pa, err := a.Placement()
	require.NoError(t, err)
	pb, err := b.Placement()
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	la, _ := a.ObjectiveLatency()
	lb, _ := b.ObjectiveLatency()
	assert.Equal(t, la, lb)
	wa, _ := a.ObjectiveWorkload()
	wb, _ := b.ObjectiveWorkload()
	assert.Equal(t, wa, wb)

	// reseeding restarts the stream
	a.Reseed(1234)
	require.NoError(t, a.PlaceServer(40, 5))
	pa2, err := a.Placement()
	require.NoError(t, err)
	assert.Equal(t, pa, pa2)
}

func TestKMeansServesClusterFromMemberNearestCentroid(t *testing.T) {
	// two tight groups far apart
	pts := []model.DemandPoint{
		{ID: 0, Latitude: 0, Longitude: 0, Workload: 1},
		{ID: 1, Latitude: 0, Longitude: 0.001, Workload: 1},
		{ID: 2, Latitude: 0, Longitude: 0.002, Workload: 1},
		{ID: 3, Latitude: 1, Longitude: 1, Workload: 5},
		{ID: 4, Latitude: 1, Longitude: 1.001, Workload: 5},
		{ID: 5, Latitude: 1, Longitude: 1.002, Workload: 5},
	}
	d, err := geo.DistanceMatrix(pts)
	require.NoError(t, err)
	m := NewKMeans(pts, d, KMeansConfig{Seed: 3})
	require.NoError(t, m.PlaceServer(6, 2))
	pl, err := m.Placement()
	require.NoError(t, err)
	require.NoError(t, pl.Check(2))
	assert.ElementsMatch(t, []int{1, 4}, pl.Sites)
	assert.Equal(t, []int{1, 1, 1, 4, 4, 4}, pl.Assign)
	loads := SiteLoads(pl, pts)
	sort.Float64s(loads)
	assert.Equal(t, []float64{3, 15}, loads)
}

func TestKMeansCoincidentPointsStillYieldKClusters(t *testing.T) {
	pts := make([]model.DemandPoint, 8)
	for i := range pts {
		pts[i] = model.DemandPoint{ID: i, Latitude: 31, Longitude: 121, Workload: float64(i)}
	}
	pts[7].Latitude = 32
	_, d := scatter(t, 8, 23)
	for seed := int64(0); seed < 20; seed++ {
		m := NewKMeans(pts, d, KMeansConfig{Seed: seed})
		for k := 1; k <= 8; k++ {
			require.NoError(t, m.PlaceServer(8, k))
			pl, err := m.Placement()
			require.NoError(t, err)
			require.NoError(t, pl.Check(k), "seed=%d k=%d", seed, k)
		}
	}
}

func TestFillEmptyMovesFarthestPoint(t *testing.T) {
	xs := [][2]float64{{0, 0}, {0, 1}, {0, 5}, {9, 9}}
	cluster := []int{0, 0, 0, 1}
	size := []int{3, 1, 0}
	centroids := [][2]float64{{0, 1}, {9, 9}, {100, 100}}
	assert.True(t, fillEmpty(xs, cluster, size, centroids))
	assert.Equal(t, []int{0, 0, 2, 1}, cluster)
	assert.Equal(t, []int{2, 1, 1}, size)
	assert.Equal(t, [2]float64{0, 5}, centroids[2])
}

func TestTopKIsDeterministicAndStable(t *testing.T) {
	pts, d := line(8)
	for i, w := range []float64{5, 9, 9, 1, 7, 2, 9, 0} {
		pts[i].Workload = w
		pts[i].UserNum = 10 - i
	}
	p := NewTopK(pts, d, TopKConfig{})
	require.NoError(t, p.PlaceServer(8, 3))
	pl, err := p.Placement()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 6}, pl.Sites)
	assert.Equal(t, []int{1, 1, 2, 2, 2, 6, 6, 6}, pl.Assign)

	lat1, _ := p.ObjectiveLatency()
	wl1, _ := p.ObjectiveWorkload()
	require.NoError(t, p.PlaceServer(8, 3))
	lat2, _ := p.ObjectiveLatency()
	wl2, _ := p.ObjectiveWorkload()
	assert.Equal(t, lat1, lat2)
	assert.Equal(t, wl1, wl2)

	byUsers := NewTopK(pts, d, TopKConfig{RankBy: RankByUsers})
	require.NoError(t, byUsers.PlaceServer(8, 2))
	pl, err = byUsers.Placement()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, pl.Sites)
}

func TestRandomSeedDeterminism(t *testing.T) {
	pts, d := scatter(t, 30, 24)
	a := NewRandom(pts, d, RandomConfig{Seed: 5})
	b := NewRandom(pts, d, RandomConfig{Seed: 5})
	for trial := 0; trial < 5; trial++ {
		require.NoError(t, a.PlaceServer(30, 4))
		require.NoError(t, b.PlaceServer(30, 4))
		pa, _ := a.Placement()
		pb, _ := b.Placement()
		assert.Equal(t, pa, pb)
		la, _ := a.ObjectiveLatency()
		lb, _ := b.ObjectiveLatency()
		assert.Equal(t, la, lb)
	}
}

func TestSampling(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, Sampling{}.Select(10, 4))
	assert.Equal(t, []int{0, 1, 2}, Sampling{Mode: SamplePrefix, Seed: 9}.Select(3, 3))

	r := Sampling{Mode: SampleRandom, Seed: 17}
	ids := r.Select(100, 10)
	require.Len(t, ids, 10)
	assert.IsIncreasing(t, ids)
	assert.Equal(t, ids, r.Select(100, 10))
	assert.NotEqual(t, ids, Sampling{Mode: SampleRandom, Seed: 18}.Select(100, 10))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, r.Select(5, 5))

	m, err := ParseSamplingMode("Random")
	require.NoError(t, err)
	assert.Equal(t, SampleRandom, m)
	m, err = ParseSamplingMode("")
	require.NoError(t, err)
	assert.Equal(t, SamplePrefix, m)
	_, err = ParseSamplingMode("stride")
	assert.Error(t, err)

	rb, err := ParseRankBy("users")
	require.NoError(t, err)
	assert.Equal(t, RankByUsers, rb)
	_, err = ParseRankBy("rtt")
	assert.Error(t, err)
}
