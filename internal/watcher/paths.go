package watcher

import (
	"errors"
	"os"
	"sort"
	"strings"
)

// ErrEmptyPath is returned when a watch path is empty.
var ErrEmptyPath = errors.New("path must not be empty")

// ContainsParentFolder reports whether path equals, or lies below, any entry
// of watched. The comparison is a case-sensitive string prefix match on a
// separator boundary; nothing is read from disk.
func ContainsParentFolder(watched []string, path string) (bool, error) {
	if path == "" {
		return false, ErrEmptyPath
	}
	path = trimSeparators(path)

	for _, candidate := range watched {
		if candidate == "" {
			continue
		}
		candidate = trimSeparators(candidate)
		if path == candidate {
			return true, nil
		}
		if candidate == string(os.PathSeparator) {
			return true, nil
		}
		if strings.HasPrefix(path, candidate+string(os.PathSeparator)) {
			return true, nil
		}
	}
	return false, nil
}

// CollapseWatchSet drops empty and duplicate paths and any path that lies
// below another entry. Shorter paths win, so the result does not depend on
// input order.
func CollapseWatchSet(paths []string) []string {
	sorted := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			sorted = append(sorted, trimSeparators(p))
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	var out []string
	for _, p := range sorted {
		if covered, _ := ContainsParentFolder(out, p); covered {
			continue
		}
		out = append(out, p)
	}
	return out
}

// trimSeparators removes trailing separators but keeps a bare root.
func trimSeparators(path string) string {
	trimmed := strings.TrimRight(path, string(os.PathSeparator))
	if trimmed == "" {
		return string(os.PathSeparator)
	}
	return trimmed
}
