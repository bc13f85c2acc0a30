package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/fsprof/internal/perf"
)

// Session is one ingested profile.
type Session struct {
	ID         uuid.UUID
	PID        int
	Command    string
	StartedAt  time.Time
	Dropped    uint64
	IngestedAt time.Time
	EventCount int
}

// EventRecord is a stored event together with its resolved path.
type EventRecord struct {
	Seq     int
	Event   perf.Event
	Path    string
	HasPath bool
}

// EventFilter narrows GetEvents. The zero value selects everything.
type EventFilter struct {
	Kinds      []perf.Kind
	FailedOnly bool
	Limit      int
}
