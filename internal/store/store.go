package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"edgeplace/internal/model"
)

// Store persists experiment runs and their per-cell results.
type Store interface {
	CreateRun(ctx context.Context, req model.ExperimentRequest) (model.Run, error)
	// AppendResults adds results to a running run, keeping their order.
	AppendResults(ctx context.Context, runID string, results []model.AlgoResult) error
	// FinishRun moves a running run to completed or failed.
	FinishRun(ctx context.Context, runID, status, errMsg string) (model.Run, error)
	GetRun(ctx context.Context, runID string) (model.Run, error)
	// ListRuns pages through runs oldest first without their results. The
	// cursor is the last ID of the previous page; the page holds the runs with
	// larger IDs, so a cursor of a deleted run never restarts the listing.
	ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error)
}

var (
	ErrNotFound = errors.New("not found")
	// ErrRunFinished rejects writes to a run that already completed or failed.
	ErrRunFinished = errors.New("run already finished")
	// ErrInvalidCursor rejects a list cursor that is not a run ID.
	ErrInvalidCursor = errors.New("invalid cursor")
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return defaultListLimit
	}
	return limit
}

// parseRunID maps IDs that cannot name a run to ErrNotFound.
func parseRunID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return u, nil
}

// parseCursor returns the canonical form of a non-empty cursor.
func parseCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	u, err := uuid.Parse(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return u.String(), nil
}

func validFinalStatus(status string) bool {
	return status == model.RunStatusCompleted || status == model.RunStatusFailed
}
