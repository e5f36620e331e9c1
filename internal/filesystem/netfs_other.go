//go:build !unix

package filesystem

import "strings"

// IsNetworkUnavailable reports whether err means the share backing a path
// dropped away, as opposed to the path itself being gone.
func IsNetworkUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "network name is no longer available")
}
