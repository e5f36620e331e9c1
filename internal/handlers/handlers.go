package handlers

import (
	"context"

	"github.com/google/uuid"

	"media-library/internal/indexer"
	"media-library/internal/library"
	"media-library/internal/metrics"
	"media-library/internal/providers"
	"media-library/internal/watcher"
)

// Scanner is the part of the indexer the API drives.
type Scanner interface {
	IsReady() bool
	GetHealthStatus() indexer.HealthStatus
	QueueFullRescan()
	RefreshItem(ctx context.Context, id uuid.UUID, force bool) (library.Outcome, error)
}

// StatsSource supplies cached catalog statistics.
type StatsSource interface {
	GetStats() metrics.Stats
}

// RunningSource lists in-flight provider runs.
type RunningSource interface {
	Running() []providers.RunningProvider
}

// WatchSource lists watched paths.
type WatchSource interface {
	Paths() []watcher.PathState
}

// Reloader re-reads the server configuration file.
type Reloader interface {
	Reload() error
}

type Handlers struct {
	scanner  Scanner
	stats    StatsSource
	running  RunningSource
	watches  WatchSource
	reloader Reloader
}

// Deps groups the services the handlers read from.
type Deps struct {
	Scanner  Scanner
	Stats    StatsSource
	Running  RunningSource
	Watches  WatchSource
	Reloader Reloader
}

func New(deps Deps) *Handlers {
	return &Handlers{
		scanner:  deps.Scanner,
		stats:    deps.Stats,
		running:  deps.Running,
		watches:  deps.Watches,
		reloader: deps.Reloader,
	}
}
