package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edgeplace/internal/config"
	"edgeplace/internal/experiment"
	"edgeplace/internal/metrics"
	"edgeplace/internal/progress"
	"edgeplace/internal/store"
)

// Server exposes experiment runs over HTTP. Runs started through the API
// execute in the background under the server's base context.
type Server struct {
	Store  store.Store
	Broker progress.Broker
	Driver *experiment.Driver
	Config config.Config
	Log    *slog.Logger

	base context.Context
	runs sync.WaitGroup
}

// NewServer wires the handlers. Cancelling ctx stops background runs, which
// are then recorded as failed.
func NewServer(ctx context.Context, cfg config.Config, st store.Store, broker progress.Broker, drv *experiment.Driver, log *slog.Logger) *Server {
	return &Server{Store: st, Broker: broker, Driver: drv, Config: cfg, Log: log, base: ctx}
}

// Routes returns the full handler tree with logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/runs", s.CreateRunHandler)
	mux.HandleFunc("GET /v1/runs", s.ListRunsHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.GetRunHandler)
	mux.HandleFunc("GET /v1/runs/{id}/report", s.RunReportHandler)
	mux.HandleFunc("GET /v1/runs/{id}/progress", s.ProgressHandler)

	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /v1/debug", s.DebugJSON)

	return s.logMiddleware(metricsMiddleware(mux))
}

// Wait blocks until every background run has finished.
func (s *Server) Wait() { s.runs.Wait() }
