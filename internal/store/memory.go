package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"edgeplace/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu   sync.Mutex
	runs map[string]*model.Run
	ids  []string // creation order
}

func NewMemory() *Memory {
	return &Memory{runs: map[string]*model.Run{}}
}

// newRunID returns a time-ordered UUID so ID order matches creation order.
func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (m *Memory) CreateRun(ctx context.Context, req model.ExperimentRequest) (model.Run, error) {
	id, err := newRunID()
	if err != nil {
		return model.Run{}, err
	}
	r := &model.Run{ID: id, Status: model.RunStatusRunning, CreatedAt: time.Now().UTC(), Request: req}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id] = r
	m.ids = append(m.ids, id)
	return copyRun(r, true), nil
}

func (m *Memory) AppendResults(ctx context.Context, runID string, results []model.AlgoResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	if r.Status != model.RunStatusRunning {
		return ErrRunFinished
	}
	r.Results = append(r.Results, results...)
	return nil
}

func (m *Memory) FinishRun(ctx context.Context, runID, status, errMsg string) (model.Run, error) {
	if !validFinalStatus(status) {
		return model.Run{}, fmt.Errorf("invalid final status %q", status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	if r.Status != model.RunStatusRunning {
		return model.Run{}, ErrRunFinished
	}
	now := time.Now().UTC()
	r.Status = status
	r.Error = errMsg
	r.FinishedAt = &now
	return copyRun(r, true), nil
}

func (m *Memory) GetRun(ctx context.Context, runID string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return copyRun(r, true), nil
}

func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	cursor, err := parseCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// ids are time-ordered UUIDs, so creation order is string order
	start := 0
	if cursor != "" {
		start = sort.SearchStrings(m.ids, cursor)
		if start < len(m.ids) && m.ids[start] == cursor {
			start++
		}
	}
	out := []model.Run{}
	var next string
	for i := start; i < len(m.ids) && len(out) < limit; i++ {
		out = append(out, copyRun(m.runs[m.ids[i]], false))
		next = m.ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func copyRun(r *model.Run, withResults bool) model.Run {
	c := *r
	c.Results = nil
	if withResults && len(r.Results) > 0 {
		c.Results = append([]model.AlgoResult(nil), r.Results...)
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
