/*
Package filesystem provides resilient filesystem operations for library
paths that may live on network shares.

# Retries

StatWithRetry and OpenWithRetry wrap os.Stat and os.Open and retry only on
ESTALE (stale NFS file handle), with exponential backoff:

  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Every other error fails immediately.

# In-progress writes

IsLocked is the check used by the change aggregator before it drains a
debounce window. A file counts as locked when it cannot be opened read/write
or when another handle holds an exclusive flock on it. Missing paths and
directories are never locked.

# Network shares

IsNetworkUnavailable classifies watch and stat errors that indicate the
share went away (ESTALE, ENOTCONN, EHOSTDOWN and friends) so the watcher can
keep retrying instead of tearing the watch down.

# Metrics

Operations report through an Observer installed with SetObserver; the
metrics package provides the Prometheus implementation. With no observer set
nothing is recorded, which keeps tests free of global state.
*/
package filesystem
