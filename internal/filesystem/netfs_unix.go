//go:build unix

package filesystem

import (
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

var networkErrnos = []unix.Errno{
	unix.ESTALE,
	unix.ENOTCONN,
	unix.EHOSTDOWN,
	unix.EHOSTUNREACH,
	unix.ENETDOWN,
	unix.ENETUNREACH,
	unix.ENETRESET,
	unix.ECONNRESET,
	unix.ECONNABORTED,
	unix.ETIMEDOUT,
}

// IsNetworkUnavailable reports whether err means the share backing a path
// dropped away, as opposed to the path itself being gone.
func IsNetworkUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		for _, candidate := range networkErrnos {
			if errno == candidate {
				return true
			}
		}
	}
	return matchesNetworkMessage(err)
}

func matchesNetworkMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "network name is no longer available") ||
		strings.Contains(msg, "stale file handle") ||
		strings.Contains(msg, "host is down")
}
