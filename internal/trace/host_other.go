//go:build !linux

package trace

// AtFDCWD makes Open resolve relative paths against the working directory.
const AtFDCWD = -100

// OpenReadOnly opens a file for reading.
const OpenReadOnly = 0

// NewSystem returns ErrUnsupported: the real host needs Linux.
func NewSystem() (Host, Resolver, error) {
	return nil, nil, ErrUnsupported
}
