//go:build unix

package filesystem

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestIsNetworkUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "stale handle", err: unix.ESTALE, want: true},
		{name: "path error wrapping ENOTCONN", err: &os.PathError{Op: "open", Path: "/mnt/share", Err: unix.ENOTCONN}, want: true},
		{name: "host down", err: fmt.Errorf("watch: %w", unix.EHOSTDOWN), want: true},
		{name: "smb message", err: errors.New("The specified network name is no longer available"), want: true},
		{name: "not found", err: os.ErrNotExist, want: false},
		{name: "permission", err: unix.EACCES, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkUnavailable(tt.err); got != tt.want {
				t.Errorf("IsNetworkUnavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
