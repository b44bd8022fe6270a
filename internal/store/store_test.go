package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeplace/internal/model"
)

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	req := model.ExperimentRequest{Label: "contract", Sweeps: [][]model.GridPoint{{{N: 30, K: 3}}}, Trials: 10}

	r, err := s.CreateRun(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, r.Status)
	assert.Nil(t, r.FinishedAt)
	assert.False(t, r.CreatedAt.IsZero())

	res := []model.AlgoResult{
		{Algorithm: "exact", N: 30, K: 3, Trials: 1, Latency: 1.5},
		{Algorithm: "topk", N: 30, K: 3, Trials: 1, Latency: 2.5},
	}
	require.NoError(t, s.AppendResults(ctx, r.ID, res[:1]))
	require.NoError(t, s.AppendResults(ctx, r.ID, res[1:]))

	got, err := s.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, req, got.Request)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "exact", got.Results[0].Algorithm)
	assert.Equal(t, "topk", got.Results[1].Algorithm)

	_, err = s.FinishRun(ctx, r.ID, "paused", "")
	assert.Error(t, err)
	done, err := s.FinishRun(ctx, r.ID, model.RunStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, done.Status)
	require.NotNil(t, done.FinishedAt)
	assert.Len(t, done.Results, 2)

	_, err = s.FinishRun(ctx, r.ID, model.RunStatusFailed, "late")
	assert.ErrorIs(t, err, ErrRunFinished)
	assert.ErrorIs(t, s.AppendResults(ctx, r.ID, res), ErrRunFinished)

	_, err = s.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.AppendResults(ctx, "00000000-0000-0000-0000-000000000000", res), ErrNotFound)
	_, err = s.FinishRun(ctx, "00000000-0000-0000-0000-000000000000", model.RunStatusFailed, "")
	assert.ErrorIs(t, err, ErrNotFound)

	// IDs that are not UUIDs name no run
	_, err = s.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.AppendResults(ctx, "run-1", res), ErrNotFound)
	_, err = s.FinishRun(ctx, "run-1", model.RunStatusFailed, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.ListRuns(ctx, "run-1", 10)
	assert.ErrorIs(t, err, ErrInvalidCursor)
	page, next, err := s.ListRuns(ctx, "ffffffff-ffff-ffff-ffff-ffffffffffff", 10)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Empty(t, next)
}

func TestMemoryContract(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryListRunsPaginates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for i := 0; i < 5; i++ {
		r, err := m.CreateRun(ctx, model.ExperimentRequest{Trials: i + 1})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	require.NoError(t, m.AppendResults(ctx, ids[0], []model.AlgoResult{{Algorithm: "random"}}))

	page, next, err := m.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Nil(t, page[0].Results, "list omits results")
	assert.Equal(t, ids[1], next)

	page, next, err = m.ListRuns(ctx, next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[3]}, []string{page[0].ID, page[1].ID})

	page, next, err = m.ListRuns(ctx, next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Empty(t, next)

	// a cursor naming no run continues after its position instead of restarting
	unknown := ids[2][:len(ids[2])-1] + "0"
	if unknown == ids[2] {
		unknown = ids[2][:len(ids[2])-1] + "1"
	}
	page, _, err = m.ListRuns(ctx, unknown, 10)
	require.NoError(t, err)
	for _, r := range page {
		assert.Greater(t, r.ID, unknown)
	}
	assert.NotContains(t, []string{ids[0], ids[1]}, page[0].ID)

	page, _, err = m.ListRuns(ctx, strings.ToUpper(ids[3]), 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[4], page[0].ID)

	// IDs are time ordered
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r, _ := m.CreateRun(ctx, model.ExperimentRequest{})
	require.NoError(t, m.AppendResults(ctx, r.ID, []model.AlgoResult{{Algorithm: "topk"}}))
	got, _ := m.GetRun(ctx, r.ID)
	got.Results[0].Algorithm = "mutated"
	again, _ := m.GetRun(ctx, r.ID)
	assert.Equal(t, "topk", again.Results[0].Algorithm)
}
