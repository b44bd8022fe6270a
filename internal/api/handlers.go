package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"edgeplace/internal/experiment"
	"edgeplace/internal/model"
	"edgeplace/internal/report"
	"edgeplace/internal/store"
)

// CreateRunHandler validates an experiment request, records the run and starts
// it in the background. It answers 202 with the running run.
func (s *Server) CreateRunHandler(w http.ResponseWriter, r *http.Request) {
	var req model.ExperimentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := validateRunRequest(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	run, err := s.Driver.Start(r.Context(), req)
	if errors.Is(err, experiment.ErrInvalidRequest) {
		writeProblem(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err != nil {
		writeProblem(w, r, http.StatusInternalServerError, "Create run failed", err.Error())
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		_, _ = s.Driver.Execute(s.base, run)
	}()

	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeProblem(w, r, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), cursor, limit)
	if errors.Is(err, store.ErrInvalidCursor) {
		writeProblem(w, r, http.StatusBadRequest, "Invalid cursor", err.Error())
		return
	}
	if err != nil {
		writeProblem(w, r, http.StatusInternalServerError, "List runs failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// RunReportHandler renders the results collected so far as text, or as CSV
// with ?format=csv.
func (s *Server) RunReportHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	var err error
	switch r.URL.Query().Get("format") {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = report.WriteText(&buf, run.Results)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		err = report.WriteCSV(&buf, run.Results)
	default:
		writeProblem(w, r, http.StatusBadRequest, "Invalid format", "format must be text or csv")
		return
	}
	if err != nil {
		writeProblem(w, r, http.StatusInternalServerError, "Report failed", err.Error())
		return
	}
	w.Header().Set("X-Run-Status", run.Status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (model.Run, bool) {
	run, err := s.Store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, r, http.StatusNotFound, "Run not found", "")
		return run, false
	}
	if err != nil {
		writeProblem(w, r, http.StatusInternalServerError, "Get run failed", err.Error())
		return run, false
	}
	return run, true
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check connectivity of the Postgres store and Redis broker when in use
	type pinger interface {
		Ping(ctx context.Context) error
	}
	for _, dep := range []any{s.Store, s.Broker} {
		if p, ok := dep.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				writeProblem(w, r, http.StatusServiceUnavailable, "Not Ready", err.Error())
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
