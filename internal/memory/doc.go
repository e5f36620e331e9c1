// Package memory sizes the Go heap for containerized deployments and gives
// long-running library work a backpressure signal.
//
// # Configuration
//
// Call [ConfigureFromEnv] at the top of main, before the catalog is opened:
//
//   - GOMEMLIMIT: standard Go variable; if set it wins and is only reported
//   - MEMORY_LIMIT: container limit in bytes, usually from the Kubernetes
//     Downward API (resourceFieldRef: limits.memory)
//   - MEMORY_RATIO: share of MEMORY_LIMIT handed to the Go heap, 0.0-1.0
//     (default 0.85)
//
// GOMEMLIMIT is a soft limit. It only covers Go heap allocations, so the
// ratio must leave room for SQLite, image decoding and goroutine stacks.
//
// # Backpressure
//
// A [Monitor] samples heap usage. Above the high water mark
// [Monitor.ShouldThrottle] reports true and the parallel folder walk
// narrows. Above the critical mark new scan batches and metadata refreshes
// block in [Monitor.Wait] until usage falls back under the high water mark.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//	    return err
//	}
package memory
