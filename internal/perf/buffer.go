package perf

// DefaultBufferCapacity is the number of events a buffer holds before it
// starts dropping.
const DefaultBufferCapacity = 1 << 20

// EventBuffer is the append-only event log of one profiling session. It owns
// the session's string table.
type EventBuffer struct {
	strings  *StringTable
	events   []Event
	capacity int
	dropped  uint64
}

// NewEventBuffer creates an empty buffer. A non-positive capacity selects
// DefaultBufferCapacity.
func NewEventBuffer(capacity int, opts TableOptions) *EventBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &EventBuffer{
		strings:  NewStringTable(opts),
		capacity: capacity,
	}
}

// RegisterString interns content in the buffer's string table.
func (b *EventBuffer) RegisterString(content string) (Index, error) {
	return b.strings.Register(content)
}

// Strings returns the buffer's string table.
func (b *EventBuffer) Strings() *StringTable {
	return b.strings
}

// Append adds e to the log. When the buffer is full the event is dropped and
// Append reports false; it never blocks.
func (b *EventBuffer) Append(e Event) bool {
	if len(b.events) >= b.capacity {
		b.dropped++
		return false
	}
	b.events = append(b.events, e)
	return true
}

// Drain returns the buffered events in append order and empties the log.
// The string table is left intact so drained indices stay resolvable.
func (b *EventBuffer) Drain() []Event {
	out := b.events
	b.events = nil
	return out
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	return len(b.events)
}

// Dropped returns how many events were rejected because the buffer was full.
func (b *EventBuffer) Dropped() uint64 {
	return b.dropped
}
