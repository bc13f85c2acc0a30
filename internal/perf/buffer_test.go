package perf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvent(fd int32, idx Index) Event {
	return Event{
		Kind:       KindRead,
		Result:     Success(),
		Descriptor: &DescriptorData{FD: fd, PathIndex: idx, HasPath: true},
	}
}

func TestEventBuffer_AppendPreservesOrder(t *testing.T) {
	buf := NewEventBuffer(0, DefaultTableOptions())

	for fd := int32(3); fd < 8; fd++ {
		require.True(t, buf.Append(readEvent(fd, 0)))
	}

	events := buf.Drain()
	require.Len(t, events, 5)
	for i, e := range events {
		fd, ok := e.FD()
		require.True(t, ok)
		assert.Equal(t, int32(3+i), fd)
	}
}

func TestEventBuffer_DrainIsConsuming(t *testing.T) {
	buf := NewEventBuffer(0, DefaultTableOptions())
	buf.Append(readEvent(3, 0))

	assert.Len(t, buf.Drain(), 1)
	assert.Empty(t, buf.Drain())
	assert.Equal(t, 0, buf.Len())
}

func TestEventBuffer_DropsWhenFull(t *testing.T) {
	buf := NewEventBuffer(2, DefaultTableOptions())

	assert.True(t, buf.Append(readEvent(3, 0)))
	assert.True(t, buf.Append(readEvent(4, 0)))
	assert.False(t, buf.Append(readEvent(5, 0)))

	assert.Equal(t, uint64(1), buf.Dropped())
	assert.Len(t, buf.Drain(), 2)

	// Draining frees room again.
	assert.True(t, buf.Append(readEvent(6, 0)))
}

func TestEventBuffer_DrainKeepsStrings(t *testing.T) {
	buf := NewEventBuffer(0, TableOptions{})
	idx, err := buf.RegisterString("/var/log/syslog")
	require.NoError(t, err)
	buf.Append(readEvent(3, idx))
	buf.Drain()

	got, ok := buf.Strings().Lookup(idx)
	require.True(t, ok)
	assert.Equal(t, "/var/log/syslog", got)
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"open", Event{Kind: KindOpen, Open: &OpenData{}}, false},
		{"pread", Event{Kind: KindPread, Pread: &PreadData{}}, false},
		{"readv", Event{Kind: KindReadv, Descriptor: &DescriptorData{}}, false},
		{"no payload", Event{Kind: KindClose}, true},
		{"wrong payload", Event{Kind: KindOpen, Descriptor: &DescriptorData{}}, true},
		{"two payloads", Event{Kind: KindRead, Descriptor: &DescriptorData{}, Open: &OpenData{}}, true},
		{"unknown kind", Event{Kind: 42, Descriptor: &DescriptorData{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("write")
	assert.Error(t, err)
}
