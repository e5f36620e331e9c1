package filesystem

import (
	"errors"
	"io/fs"
	"os"

	"github.com/gofrs/flock"

	"media-library/internal/logging"
)

// IsLocked reports whether path looks like a file that is still being
// written. The check is a short read/write open followed by a non-blocking
// exclusive flock; nothing is read.
//
// Paths that no longer exist and directories are never locked, so deletions
// and folder events always drain. A stat failure for any other reason means
// the path is not yet resolvable and counts as locked.
func IsLocked(path string) bool {
	locked := checkLocked(path)
	if obs := observe(); obs != nil {
		obs.ObserveLockCheck(locked)
	}
	return locked
}

func checkLocked(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false
		}
		logging.Debug("Lock check could not stat %s: %v", path, err)
		return true
	}
	if info.IsDir() {
		return false
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return false
		case errors.Is(err, fs.ErrPermission):
			// Read-only media never becomes writable; waiting would stall forever.
			return false
		default:
			logging.Debug("Lock check could not open %s: %v", path, err)
			return true
		}
	}
	_ = f.Close()

	fl := flock.New(path, flock.SetFlag(os.O_RDONLY))
	ok, err := fl.TryLock()
	if err != nil {
		logging.Debug("Lock check flock failed for %s: %v", path, err)
		return true
	}
	if !ok {
		return true
	}
	if err := fl.Unlock(); err != nil {
		logging.Debug("Lock check failed to release %s: %v", path, err)
	}
	return false
}
