package placement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMatchesBruteForce(t *testing.T) {
	pts, d := scatter(t, 11, 11)
	for k := 1; k <= 5; k++ {
		e := NewExact(pts, d, ExactConfig{})
		require.NoError(t, e.PlaceServer(11, k))
		lat, err := e.ObjectiveLatency()
		require.NoError(t, err)
		assert.InDelta(t, bruteForce(d, 11, k)/11, lat, 1e-9, "k=%d", k)

		st := e.Stats()
		assert.True(t, st.Optimal)
		assert.Equal(t, 0.0, st.Gap)
		assert.InDelta(t, lat, st.Objective, 1e-9)
		assert.Contains(t, []string{StopComplete, StopRootBound}, st.StopReason)
	}
}

func TestExactBudgetReturnsFlaggedIncumbent(t *testing.T) {
	pts, d := scatter(t, 60, 12)
	e := NewExact(pts, d, ExactConfig{TimeBudget: time.Nanosecond, LPBoundMaxSites: -1})
	require.NoError(t, e.PlaceServer(60, 6))

	st := e.Stats()
	assert.Equal(t, StopTimeBudget, st.StopReason)
	assert.False(t, st.Optimal)
	assert.Greater(t, st.Gap, 0.0)
	assert.LessOrEqual(t, st.LowerBound, st.Objective)

	pl, err := e.Placement()
	require.NoError(t, err)
	require.NoError(t, pl.Check(6))
	lat, err := e.ObjectiveLatency()
	require.NoError(t, err)
	assert.InDelta(t, st.Objective, lat, 1e-9)
}

func TestExactHonoursBudgetOnLargeInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("large instance")
	}
	pts, d := scatter(t, 1000, 17)
	budget := 500 * time.Millisecond
	e := NewExact(pts, d, ExactConfig{TimeBudget: budget})

	start := time.Now()
	require.NoError(t, e.PlaceServer(1000, 100))
	assert.LessOrEqual(t, time.Since(start), budget+250*time.Millisecond)

	st := e.Stats()
	assert.Greater(t, st.LowerBound, 0.0)
	assert.LessOrEqual(t, st.LowerBound, st.Objective)
	assert.Less(t, st.Gap, 1.0)
	pl, err := e.Placement()
	require.NoError(t, err)
	require.NoError(t, pl.Check(100))
}

func TestSwapScoringMatchesFullCost(t *testing.T) {
	_, d := scatter(t, 40, 18)
	local := localDistances(d, Sampling{}.Select(40, 40))
	for k := 1; k <= 6; k++ {
		s := newSearch(local, 40, k, ExactConfig{TimeBudget: time.Minute}, time.Now())
		greedy := s.greedy()
		swapped := s.swapImprove(greedy)
		assert.LessOrEqual(t, s.cost(swapped), s.cost(greedy)+1e-9, "k=%d", k)

		// no single swap improves a local optimum
		open := append([]int(nil), swapped...)
		isOpen := map[int]bool{}
		for _, j := range open {
			isOpen[j] = true
		}
		base := s.cost(open)
		for a := range open {
			for j := 0; j < 40; j++ {
				if isOpen[j] {
					continue
				}
				prev := open[a]
				open[a] = j
				assert.GreaterOrEqual(t, s.cost(open), base-1e-6, "k=%d swap %d->%d", k, prev, j)
				open[a] = prev
			}
		}
	}
}

func TestExactNodeLimitNeverWorseThanGreedy(t *testing.T) {
	pts, d := scatter(t, 30, 13)
	limited := NewExact(pts, d, ExactConfig{NodeLimit: 1, LPBoundMaxSites: -1})
	require.NoError(t, limited.PlaceServer(30, 4))
	full := NewExact(pts, d, ExactConfig{})
	require.NoError(t, full.PlaceServer(30, 4))

	a, err := limited.ObjectiveLatency()
	require.NoError(t, err)
	b, err := full.ObjectiveLatency()
	require.NoError(t, err)
	assert.LessOrEqual(t, b, a+1e-9)
	if limited.Stats().StopReason == StopNodeLimit {
		assert.LessOrEqual(t, limited.Stats().Nodes, 1)
	}
}

func TestExactGapTolerance(t *testing.T) {
	pts, d := scatter(t, 25, 14)
	e := NewExact(pts, d, ExactConfig{GapTolerance: 0.05, LPBoundMaxSites: -1})
	require.NoError(t, e.PlaceServer(25, 3))
	st := e.Stats()
	assert.LessOrEqual(t, st.Gap, 0.05)

	lat, err := e.ObjectiveLatency()
	require.NoError(t, err)
	// a pruned subtree had bound >= best*(1-tol), so best <= opt/(1-tol)
	assert.LessOrEqual(t, lat, bruteForce(d, 25, 3)/25/0.95+1e-9)
}

func TestExactRandomSampling(t *testing.T) {
	pts, d := scatter(t, 30, 15)
	sampling := Sampling{Mode: SampleRandom, Seed: 99}
	e := NewExact(pts, d, ExactConfig{Sampling: sampling})
	require.NoError(t, e.PlaceServer(10, 2))
	pl, err := e.Placement()
	require.NoError(t, err)
	assert.Equal(t, sampling.Select(30, 10), pl.Points)
	require.NoError(t, pl.Check(2))
}

func TestRootBoundsAreValid(t *testing.T) {
	_, d := scatter(t, 9, 16)
	ids := Sampling{}.Select(9, 9)
	local := localDistances(d, ids)
	for k := 1; k <= 4; k++ {
		opt := bruteForce(d, 9, k)

		s := newSearch(local, 9, k, ExactConfig{TimeBudget: time.Second}, time.Now())
		assert.LessOrEqual(t, s.lagrangianBound(opt), opt+1e-9, "lagrangian k=%d", k)

		lb, err := lpLowerBound(local, 9, k)
		if err != nil {
			t.Logf("lp bound k=%d: %v", k, err)
			continue
		}
		assert.LessOrEqual(t, lb, opt+1e-6, "lp k=%d", k)
		assert.Greater(t, lb, 0.0)
	}
}
