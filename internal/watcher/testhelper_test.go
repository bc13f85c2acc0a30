package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/store"
)

// setupTestStore creates an in-memory SQLite store for tests and registers
// cleanup with t.Cleanup so callers don't need explicit defer.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("setupTestStore: open: %v", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		t.Fatalf("setupTestStore: schema: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// newTestWatcher builds a watcher on a fresh spool dir with a test logger.
func newTestWatcher(t *testing.T, st *store.Store, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(st, filepath.Join(t.TempDir(), "spool"), zaptest.NewLogger(t), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

// testProfile returns a small profile reading one file.
func testProfile(path string) *perf.Profile {
	return &perf.Profile{
		SessionID: uuid.New(),
		PID:       100,
		Command:   "fsprof-cat " + path,
		Started:   time.Now(),
		Strings:   []string{path},
		Events: []perf.Event{
			{Kind: perf.KindOpen, StartMS: 1, Open: &perf.OpenData{PathIndex: 0, HasPath: true, Dirfd: -100}},
			{Kind: perf.KindRead, StartMS: 2, Descriptor: &perf.DescriptorData{FD: 3, PathIndex: 0, HasPath: true}},
			{Kind: perf.KindClose, StartMS: 3, Descriptor: &perf.DescriptorData{FD: 3, PathIndex: 0, HasPath: true}},
		},
	}
}

// writeSpoolProfile saves p into dir under name, creating dir if needed.
func writeSpoolProfile(t *testing.T, dir, name string, p *perf.Profile) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := perf.SaveProfile(path, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	return path
}
