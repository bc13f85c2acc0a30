package perf

import (
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// InvalidPath is registered when neither the original absolute path nor a
// pseudo-path can be resolved for a descriptor.
const InvalidPath = "<INVALID_FILE_PATH>"

// ErrOutOfMemory is returned by Register when the table's budget is exhausted.
// Callers treat it as "no path available", never as a failure of the traced
// operation.
var ErrOutOfMemory = errors.New("perf: string table out of memory")

// Index identifies a registered string. Indices are assigned from 0 upwards
// and are never reassigned.
type Index uint32

// TableOptions bounds a StringTable.
type TableOptions struct {
	MaxEntries int // 0 means unlimited
	MaxBytes   int // 0 means unlimited

	// Dedupe reuses the index of recently registered identical content.
	// DedupeCacheSize bounds how many distinct strings are remembered.
	Dedupe          bool
	DedupeCacheSize int
}

// DefaultTableOptions returns the budget used when profiling is enabled
// without explicit configuration.
func DefaultTableOptions() TableOptions {
	return TableOptions{
		MaxEntries:      1 << 16,
		MaxBytes:        16 << 20,
		Dedupe:          true,
		DedupeCacheSize: 4096,
	}
}

// StringTable maps registration indices to owned string content.
type StringTable struct {
	opts    TableOptions
	entries []string
	size    int
	recent  *lru.Cache[string, Index]
}

// NewStringTable creates an empty table.
func NewStringTable(opts TableOptions) *StringTable {
	t := &StringTable{opts: opts}
	if opts.Dedupe {
		size := opts.DedupeCacheSize
		if size <= 0 {
			size = DefaultTableOptions().DedupeCacheSize
		}
		// lru.New only fails for a non-positive size.
		t.recent, _ = lru.New[string, Index](size)
	}
	return t
}

// Register stores content and returns its index. With deduplication enabled
// an identical string still held in the dedup cache yields its existing index.
func (t *StringTable) Register(content string) (Index, error) {
	if t.recent != nil {
		if idx, ok := t.recent.Get(content); ok {
			return idx, nil
		}
	}

	if t.opts.MaxEntries > 0 && len(t.entries) >= t.opts.MaxEntries {
		return 0, ErrOutOfMemory
	}
	if t.opts.MaxBytes > 0 && t.size+len(content) > t.opts.MaxBytes {
		return 0, ErrOutOfMemory
	}

	owned := strings.Clone(content)
	idx := Index(len(t.entries))
	t.entries = append(t.entries, owned)
	t.size += len(owned)

	if t.recent != nil {
		t.recent.Add(owned, idx)
	}
	return idx, nil
}

// Lookup returns the content registered under idx.
func (t *StringTable) Lookup(idx Index) (string, bool) {
	if int(idx) >= len(t.entries) {
		return "", false
	}
	return t.entries[idx], true
}

// Len returns the number of registered entries.
func (t *StringTable) Len() int {
	return len(t.entries)
}

// Size returns the total number of content bytes held by the table.
func (t *StringTable) Size() int {
	return t.size
}

// Strings returns a copy of the entries in index order.
func (t *StringTable) Strings() []string {
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}
