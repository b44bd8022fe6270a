package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the process
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlacementDuration tracks single PlaceServer calls by algorithm
	PlacementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "placement_duration_seconds", Help: "Duration of one placement by algorithm.", Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30, 60}},
		[]string{"algorithm"},
	)
	// PlacementRuns counts placements by algorithm and status (ok, error)
	PlacementRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "placement_runs_total", Help: "Placements by algorithm and status."},
		[]string{"algorithm", "status"},
	)
	// ExactSuboptimal counts exact placements that stopped before proving optimality
	ExactSuboptimal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exact_suboptimal_total", Help: "Exact placements returned without an optimality proof, by stop reason."},
		[]string{"reason"},
	)
	// CacheRequests counts cache lookups by backend and result (hit, miss, error)
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_requests_total", Help: "Cache lookups by backend and result."},
		[]string{"backend", "result"},
	)
	// ExperimentRuns counts finished experiment runs by status
	ExperimentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "experiment_runs_total", Help: "Experiment runs by final status."},
		[]string{"status"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlacementDuration)
		Registry.MustRegister(PlacementRuns)
		Registry.MustRegister(ExactSuboptimal)
		Registry.MustRegister(CacheRequests)
		Registry.MustRegister(ExperimentRuns)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
