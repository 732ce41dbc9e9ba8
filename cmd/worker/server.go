package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sohel7709/pathlab/internal/app"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/outbox"
)

const readinessTimeout = 2 * time.Second

type outboxStatser interface {
	GetStats() outbox.Stats
}

type runner interface {
	IsRunning() bool
}

// livenessResponse is the /healthz body.
type livenessResponse struct {
	Status          string     `json:"status"`
	SweepRunning    bool       `json:"sweep_running"`
	OutboxRunning   bool       `json:"outbox_running"`
	Published       uint64     `json:"published"`
	Failed          uint64     `json:"failed"`
	Dead            uint64     `json:"dead"`
	LagSeconds      float64    `json:"lag_seconds"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	LastErrorAt     *time.Time `json:"last_error_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// livenessHandler answers 200 while the process is up and reports what
// the background loops have done.
func livenessHandler(relay outboxStatser, sweep runner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := relay.GetStats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(livenessResponse{
			Status:          "ok",
			SweepRunning:    sweep.IsRunning(),
			OutboxRunning:   stats.IsRunning,
			Published:       stats.PublishedCount,
			Failed:          stats.FailedCount,
			Dead:            stats.DeadCount,
			LagSeconds:      stats.LagSeconds,
			LastProcessedAt: stats.LastProcessedAt,
			LastErrorAt:     stats.LastErrorAt,
			LastError:       stats.LastError,
		})
	}
}

// newHealthServer serves /healthz for liveness, /readyz for the
// infrastructure checks and /metrics for Prometheus.
func newHealthServer(addr string, container *app.Container) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", livenessHandler(container.OutboxProcessor, container.SweepWorker))
	mux.Handle("GET /readyz", container.HealthRegistry().Handler(readinessTimeout))
	mux.Handle("GET /metrics", container.Metrics.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
