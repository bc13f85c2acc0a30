// Package trace is the interception layer for file system calls.
//
// Every traced call goes through a Process, which stands in for the owning
// process: it holds the process-wide lock for the duration of the call, runs
// the real operation on its Host and, when profiling is active and the
// calling Thread is not suppressed, records a perf.Event describing it.
//
// Tracing is purely observational. The value and error returned by a traced
// call are always exactly those produced by the Host; failures while building
// or storing the event are logged at debug level and otherwise ignored.
package trace

import "errors"

// ErrUnsupported is returned by NewSystem on platforms without a real host.
var ErrUnsupported = errors.New("trace: no system host for this platform")

// Host performs the real file operations.
type Host interface {
	Open(path string, dirfd int, flags int, mode uint32) (int, error)
	Close(fd int) error
	Read(fd int, buf []byte) (int, error)
	Readv(fd int, iovs [][]byte) (int, error)
	Pread(fd int, buf []byte, offset int64) (int, error)
}

// Resolver describes open descriptors. Both lookups may fail; the tracer
// falls through to the next candidate and finally to perf.InvalidPath.
type Resolver interface {
	// OriginalAbsolutePath returns the absolute path the descriptor was
	// opened with.
	OriginalAbsolutePath(fd int) (string, error)
	// PseudoPath returns a display label for descriptors without a usable
	// path, such as sockets, pipes or unlinked files.
	PseudoPath(fd int) (string, error)
}

// OpenParams are the arguments of a traced open.
type OpenParams struct {
	Path  string
	Dirfd int
	Flags int
	Mode  uint32
}
