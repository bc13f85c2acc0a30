//go:build unix

package analyzer

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrnoName returns the symbolic name of an errno, e.g. "ENOENT", or
// "errno N" for codes the platform does not name.
func ErrnoName(code int32) string {
	if name := unix.ErrnoName(syscall.Errno(code)); name != "" {
		return name
	}
	return fmt.Sprintf("errno %d", code)
}
