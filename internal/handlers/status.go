package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-library/internal/indexer"
	"media-library/internal/startup"
	"media-library/internal/watcher"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// CatalogSummary is the cached catalog size.
type CatalogSummary struct {
	Items   int            `json:"items"`
	Folders int            `json:"folders"`
	ByType  map[string]int `json:"byType,omitempty"`
}

// SyncSummary describes the realtime side of synchronization.
type SyncSummary struct {
	WatchedPaths     int `json:"watchedPaths"`
	ActiveWatches    int `json:"activeWatches"`
	RunningProviders int `json:"runningProviders"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status            string                 `json:"status"`
	Ready             bool                   `json:"ready"`
	Version           string                 `json:"version"`
	Uptime            string                 `json:"uptime"`
	LastIndexed       string                 `json:"lastIndexed,omitempty"`
	InitialIndexError string                 `json:"initialIndexError,omitempty"`
	Scan              *indexer.IndexProgress `json:"scan,omitempty"`
	Catalog           CatalogSummary         `json:"catalog"`
	Sync              SyncSummary            `json:"sync"`
	NumGoroutine      int                    `json:"numGoroutine"`
}

// HealthCheck reports scan state, catalog size and realtime sync state.
// It answers 503 until the first scan has made the catalog usable.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	hs := h.scanner.GetHealthStatus()
	stats := h.stats.GetStats()

	resp := HealthResponse{
		Status:            statusStarting,
		Ready:             hs.Ready,
		Version:           startup.Version,
		Uptime:            hs.Uptime,
		InitialIndexError: hs.InitialIndexError,
		Scan:              hs.IndexProgress,
		Catalog: CatalogSummary{
			Items:   stats.TotalItems,
			Folders: stats.TotalFolders,
			ByType:  stats.ItemsByType,
		},
		Sync:         h.syncSummary(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !hs.LastIndexed.IsZero() {
		resp.LastIndexed = hs.LastIndexed.Format(time.RFC3339)
	}

	code := http.StatusServiceUnavailable
	switch {
	case hs.Ready && hs.InitialIndexError != "":
		resp.Status = statusDegraded
		code = http.StatusOK
	case hs.Ready:
		resp.Status = statusHealthy
		code = http.StatusOK
	}
	respond(w, code, resp)
}

func (h *Handlers) syncSummary() SyncSummary {
	var s SyncSummary
	if h.watches != nil {
		paths := h.watches.Paths()
		s.WatchedPaths = len(paths)
		for _, p := range paths {
			if p.State == watcher.StateActive {
				s.ActiveWatches++
			}
		}
	}
	if h.running != nil {
		s.RunningProviders = len(h.running.Running())
	}
	return s
}

// LivenessCheck answers 200 while the process serves HTTP.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		respond(w, http.StatusOK, nil)
		return
	}
	respondStatus(w, http.StatusOK, "alive")
}

// ReadinessCheck answers 200 once the catalog is usable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if !h.scanner.IsReady() {
		respondStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	respondStatus(w, http.StatusOK, "ready")
}

// GetVersion returns build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, startup.GetBuildInfo())
}
