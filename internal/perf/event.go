package perf

import (
	"fmt"
	"strings"
)

// Kind identifies which traced operation produced an event.
type Kind uint8

const (
	KindOpen Kind = iota + 1
	KindClose
	KindRead
	KindPread
	KindReadv
)

var kindNames = map[Kind]string{
	KindOpen:  "open",
	KindClose: "close",
	KindRead:  "read",
	KindPread: "pread",
	KindReadv: "readv",
}

// Kinds lists every traced kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindOpen, KindClose, KindRead, KindPread, KindReadv}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses the lowercase name of a kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// MarshalText encodes the kind by name so exported profiles stay readable.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown event kind %d", uint8(k))
	}
	return []byte(name), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Result is the outcome of the traced operation. Code holds the errno when
// IsError is set and is 0 otherwise.
type Result struct {
	IsError bool  `json:"is_error"`
	Code    int32 `json:"code"`
}

// Success is the result of an operation that did not fail.
func Success() Result { return Result{} }

// Failed is the result of an operation that failed with errno code.
func Failed(code int32) Result { return Result{IsError: true, Code: code} }

// OpenData is the payload of an Open event. PathIndex refers to the path
// argument as passed by the caller.
type OpenData struct {
	PathIndex Index  `json:"path_index"`
	HasPath   bool   `json:"has_path"`
	Dirfd     int32  `json:"dirfd"`
	Options   int32  `json:"options"`
	Mode      uint32 `json:"mode"`
}

// DescriptorData is the payload of Close, Read and Readv events.
type DescriptorData struct {
	FD        int32 `json:"fd"`
	PathIndex Index `json:"path_index"`
	HasPath   bool  `json:"has_path"`
}

// PreadData is the payload of a Pread event.
type PreadData struct {
	DescriptorData
	BufferPtr uint64 `json:"buffer_ptr"`
	Size      uint64 `json:"size"`
	Offset    int64  `json:"offset"`
}

// Event is one traced operation. Exactly one payload field is set, chosen by
// Kind: Open for KindOpen, Pread for KindPread, Descriptor for the rest.
type Event struct {
	Kind       Kind            `json:"kind"`
	StartMS    uint64          `json:"start_ms"`
	Result     Result          `json:"result"`
	Open       *OpenData       `json:"open,omitempty"`
	Descriptor *DescriptorData `json:"descriptor,omitempty"`
	Pread      *PreadData      `json:"pread,omitempty"`
}

// PathIndex returns the interned path of the event, if one was registered.
func (e Event) PathIndex() (Index, bool) {
	switch {
	case e.Open != nil:
		return e.Open.PathIndex, e.Open.HasPath
	case e.Pread != nil:
		return e.Pread.PathIndex, e.Pread.HasPath
	case e.Descriptor != nil:
		return e.Descriptor.PathIndex, e.Descriptor.HasPath
	}
	return 0, false
}

// FD returns the descriptor argument of the event. Open events have none.
func (e Event) FD() (int32, bool) {
	switch {
	case e.Pread != nil:
		return e.Pread.FD, true
	case e.Descriptor != nil:
		return e.Descriptor.FD, true
	}
	return 0, false
}

// Validate checks that the payload matches the kind.
func (e Event) Validate() error {
	set := 0
	for _, present := range []bool{e.Open != nil, e.Descriptor != nil, e.Pread != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%s event has %d payloads, want 1", e.Kind, set)
	}

	switch e.Kind {
	case KindOpen:
		if e.Open == nil {
			return fmt.Errorf("open event without open payload")
		}
	case KindPread:
		if e.Pread == nil {
			return fmt.Errorf("pread event without pread payload")
		}
	case KindClose, KindRead, KindReadv:
		if e.Descriptor == nil {
			return fmt.Errorf("%s event without descriptor payload", e.Kind)
		}
	default:
		return fmt.Errorf("unknown event kind %d", uint8(e.Kind))
	}
	return nil
}
