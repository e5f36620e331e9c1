/*
Package workers sizes the server's worker pools in containerized
environments.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the
container CPU limit. On a 64-core node with a 2 CPU limit, NumCPU returns
64 and GOMAXPROCS returns 2. Every helper here scales from GOMAXPROCS.

# Pools

  - [ForScan]: parallel folder walk during a library scan (2 per CPU,
    SCAN_WORKERS overrides)
  - [ForRefresh]: concurrent metadata refreshes (1.5 per CPU,
    REFRESH_WORKERS overrides)
  - [ForIO]: fan-out of change notifications from the file watcher

Overrides are capped at the limit passed by the caller:

	env:
	- name: REFRESH_WORKERS
	  value: "4"

Use [Count] directly for other ratios; a limit of 0 means uncapped.
*/
package workers
