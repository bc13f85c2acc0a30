package analyzer

import (
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/fsprof/internal/perf"
)

// DefaultTopN is the number of paths and directories a summary ranks.
const DefaultTopN = 10

// Summary describes one profile.
type Summary struct {
	SessionID uuid.UUID
	PID       int
	Command   string
	Started   time.Time

	Events  int
	Dropped uint64
	// PathlessEvents could not record a path.
	PathlessEvents int

	Kinds    []KindStat
	Failures []FailureStat

	// FirstMS and LastMS are the start times of the earliest and latest
	// events; both are zero for an empty profile.
	FirstMS uint64
	LastMS  uint64

	// BytesRequested sums the buffer sizes passed to pread.
	BytesRequested uint64

	DistinctPaths  int
	TopPaths       []PathStat
	TopDirectories []PathStat
}

// SpanMS is the time between the first and the last event.
func (s *Summary) SpanMS() uint64 { return s.LastMS - s.FirstMS }

// KindStat counts the events of one kind.
type KindStat struct {
	Kind   perf.Kind
	Count  int
	Failed int
}

// FailureStat counts failures with the same errno.
type FailureStat struct {
	Code  int32
	Name  string // "ENOENT"
	Count int
}

// PathStat ranks a path or directory by how often traced calls touched it.
type PathStat struct {
	Path  string
	Count int
}
