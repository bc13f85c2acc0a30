package perf

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// ProfileExt is the file extension of exported profiles.
const ProfileExt = ".fsp"

// ErrBadProfile is returned for profile content that does not decode or is
// inconsistent.
var ErrBadProfile = errors.New("perf: malformed profile")

// Profile is the exported form of a drained event buffer.
type Profile struct {
	SessionID uuid.UUID `json:"session_id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Started   time.Time `json:"started"`
	Strings   []string  `json:"strings"`
	Events    []Event   `json:"events"`
	Dropped   uint64    `json:"dropped"`
}

// PathRecord pairs an event with the path it refers to.
type PathRecord struct {
	Path  string
	Event Event
}

// String resolves an interned index.
func (p *Profile) String(idx Index) (string, bool) {
	if int(idx) >= len(p.Strings) {
		return "", false
	}
	return p.Strings[idx], true
}

// Records flattens the profile into (path, event) pairs. Events whose path
// could not be registered are skipped.
func (p *Profile) Records() []PathRecord {
	records := make([]PathRecord, 0, len(p.Events))
	for _, e := range p.Events {
		idx, ok := e.PathIndex()
		if !ok {
			continue
		}
		path, ok := p.String(idx)
		if !ok {
			continue
		}
		records = append(records, PathRecord{Path: path, Event: e})
	}
	return records
}

// Validate checks every event payload and every referenced string index.
func (p *Profile) Validate() error {
	for i, e := range p.Events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: event %d: %v", ErrBadProfile, i, err)
		}
		if idx, ok := e.PathIndex(); ok && int(idx) >= len(p.Strings) {
			return fmt.Errorf("%w: event %d references string %d of %d", ErrBadProfile, i, idx, len(p.Strings))
		}
	}
	return nil
}

// WriteProfile encodes p as zstd-compressed JSON.
func WriteProfile(w io.Writer, p *Profile) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(p); err != nil {
		enc.Close()
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush profile: %w", err)
	}
	return nil
}

// ReadProfile decodes and validates a profile written by WriteProfile.
func ReadProfile(r io.Reader) (*Profile, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProfile, err)
	}
	defer dec.Close()

	var p Profile
	if err := json.NewDecoder(dec).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile writes p to path via a temp file and rename, so a watcher
// never observes a half-written profile under its final name.
func SaveProfile(path string, p *Profile) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".fsp-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	tmpPath := tmp.Name()

	if err := WriteProfile(tmp, p); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp profile: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename profile: %w", err)
	}
	return nil
}

// LoadProfile reads the profile stored at path.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	p, err := ReadProfile(f)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	return p, nil
}
