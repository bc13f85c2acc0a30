//go:build !unix

package analyzer

import "fmt"

// ErrnoName formats an errno by number on platforms without errno names.
func ErrnoName(code int32) string {
	return fmt.Sprintf("errno %d", code)
}
