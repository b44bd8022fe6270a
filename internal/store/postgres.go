package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	_ "github.com/jackc/pgx/v5/stdlib"

	"edgeplace/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema files in name order. Every statement is
// idempotent, so running it on each start is safe.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		ddl, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, req model.ExperimentRequest) (model.Run, error) {
	id, err := newRunID()
	if err != nil {
		return model.Run{}, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return model.Run{}, err
	}
	r := model.Run{ID: id, Status: model.RunStatusRunning, Request: req}
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO runs (id, status, request) VALUES ($1,$2,$3) RETURNING created_at`,
		id, r.Status, raw).Scan(&r.CreatedAt)
	if err != nil {
		return model.Run{}, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (p *Postgres) AppendResults(ctx context.Context, runID string, results []model.AlgoResult) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := parseRunID(runID)
	if err != nil {
		return err
	}
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE id=$1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != model.RunStatusRunning {
		return ErrRunFinished
	}
	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq)+1, 0) FROM run_results WHERE run_id=$1`, id).Scan(&seq); err != nil {
		return err
	}
	for _, res := range results {
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_results (run_id, seq, result) VALUES ($1,$2,$3)`, id, seq, raw); err != nil {
			return err
		}
		seq++
	}
	return tx.Commit()
}

func (p *Postgres) FinishRun(ctx context.Context, runID, status, errMsg string) (model.Run, error) {
	if !validFinalStatus(status) {
		return model.Run{}, fmt.Errorf("invalid final status %q", status)
	}
	id, err := parseRunID(runID)
	if err != nil {
		return model.Run{}, err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status=$2, error=$3, finished_at=now() WHERE id=$1 AND status=$4`,
		id, status, errMsg, model.RunStatusRunning)
	if err != nil {
		return model.Run{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := p.getRun(ctx, runID); err != nil {
			return model.Run{}, err
		}
		return model.Run{}, ErrRunFinished
	}
	return p.GetRun(ctx, runID)
}

func (p *Postgres) GetRun(ctx context.Context, runID string) (model.Run, error) {
	r, err := p.getRun(ctx, runID)
	if err != nil {
		return r, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT result FROM run_results WHERE run_id=$1 ORDER BY seq`, r.ID)
	if err != nil {
		return r, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return r, err
		}
		var res model.AlgoResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return r, fmt.Errorf("run %s result: %w", runID, err)
		}
		r.Results = append(r.Results, res)
	}
	return r, rows.Err()
}

const runColumns = `id::text, status, error, request, created_at, finished_at`

func (p *Postgres) getRun(ctx context.Context, runID string) (model.Run, error) {
	id, err := parseRunID(runID)
	if err != nil {
		return model.Run{}, err
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	cursor, err := parseCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	var rows *sql.Rows
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id > $1::uuid ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	var last string
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
		last = r.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var r model.Run
	var raw []byte
	var finished sql.NullTime
	if err := s.Scan(&r.ID, &r.Status, &r.Error, &raw, &r.CreatedAt, &finished); err != nil {
		return r, err
	}
	if err := json.Unmarshal(raw, &r.Request); err != nil {
		return r, fmt.Errorf("run %s request: %w", r.ID, err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if finished.Valid {
		t := finished.Time.UTC()
		r.FinishedAt = &t
	}
	return r, nil
}
