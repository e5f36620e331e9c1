package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Environment variables that override the computed pool sizes.
const (
	ScanWorkersEnv    = "SCAN_WORKERS"
	RefreshWorkersEnv = "REFRESH_WORKERS"
)

// Count returns a worker count scaled to the CPUs this process may use.
// GOMAXPROCS follows the container CPU limit (Go 1.19+), unlike
// runtime.NumCPU.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit caps the result. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// FromEnv returns the positive integer in the named environment variable,
// capped at limit, or fallback when it is unset or invalid.
func FromEnv(name string, fallback, limit int) int {
	override := os.Getenv(name)
	if override == "" {
		return fallback
	}
	count, err := strconv.Atoi(override)
	if err != nil || count <= 0 {
		return fallback
	}
	if limit > 0 && count > limit {
		return limit
	}
	return count
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// ForScan sizes the parallel directory walk. Walking is dominated by
// stat and readdir calls, so it is treated as I/O-bound.
// Overridden by SCAN_WORKERS.
func ForScan(limit int) int {
	return FromEnv(ScanWorkersEnv, ForIO(limit), limit)
}

// ForRefresh sizes the metadata refresh pool. Refreshes mix file reads,
// image decoding and HTTP calls. Overridden by REFRESH_WORKERS.
func ForRefresh(limit int) int {
	return FromEnv(RefreshWorkersEnv, ForMixed(limit), limit)
}
