package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/fsprof/internal/store"
)

func sessionCount(t *testing.T, st *store.Store) int {
	t.Helper()
	sessions, err := st.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	return len(sessions)
}

func TestNew(t *testing.T) {
	st := setupTestStore(t)

	w, err := New(st, "/tmp/spool", nil)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if w.store != st {
		t.Error("watcher store not set correctly")
	}
	if w.SpoolDir() != "/tmp/spool" {
		t.Errorf("SpoolDir() = %q", w.SpoolDir())
	}
	if w.interval != DefaultInterval {
		t.Errorf("interval = %s, want %s", w.interval, DefaultInterval)
	}
	if w.logger == nil {
		t.Error("nil logger should be replaced by a no-op logger")
	}
}

func TestNew_Options(t *testing.T) {
	st := setupTestStore(t)

	w, err := New(st, "/tmp/spool", nil, WithInterval(time.Second), WithRemoveIngested(true))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if w.interval != time.Second {
		t.Errorf("interval = %s, want 1s", w.interval)
	}
	if !w.removeIngested {
		t.Error("removeIngested not set")
	}

	// non-positive intervals keep the default
	w, _ = New(st, "/tmp/spool", nil, WithInterval(0))
	if w.interval != DefaultInterval {
		t.Errorf("interval = %s, want %s", w.interval, DefaultInterval)
	}
}

func TestNew_InvalidArguments(t *testing.T) {
	if _, err := New(nil, "/tmp/spool", nil); err == nil {
		t.Error("New(nil store) expected error, got nil")
	}
	if _, err := New(setupTestStore(t), "", nil); err == nil {
		t.Error("New(empty spool) expected error, got nil")
	}
}

func TestStartStop(t *testing.T) {
	st := setupTestStore(t)
	w := newTestWatcher(t, st, WithInterval(time.Hour))

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if info, err := os.Stat(w.SpoolDir()); err != nil || !info.IsDir() {
		t.Errorf("Start() should create the spool dir: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	// Stopping twice is harmless
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestStop_BeforeStart(t *testing.T) {
	w := newTestWatcher(t, setupTestStore(t))
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() before Start() error = %v, want nil", err)
	}
}

func TestStart_IngestsExistingFiles(t *testing.T) {
	st := setupTestStore(t)
	w := newTestWatcher(t, st, WithInterval(time.Hour))
	writeSpoolProfile(t, w.SpoolDir(), "old.fsp", testProfile("/etc/hosts"))

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if n := sessionCount(t, st); n != 1 {
		t.Errorf("sessions after Start() = %d, want 1", n)
	}
}

func TestStart_Uninitialized(t *testing.T) {
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()

	w := newTestWatcher(t, st)
	writeSpoolProfile(t, w.SpoolDir(), "a.fsp", testProfile("/etc/hosts"))

	if err := w.Start(); err == nil {
		t.Error("Start() should fail on a database without schema")
	}
}

func TestStop_FinalSweep(t *testing.T) {
	st := setupTestStore(t)
	w := newTestWatcher(t, st, WithInterval(time.Hour))
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	writeSpoolProfile(t, w.SpoolDir(), "late.fsp", testProfile("/etc/hosts"))
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if n := sessionCount(t, st); n != 1 {
		t.Errorf("sessions after Stop() = %d, want 1", n)
	}
}

func TestWatcher_PicksUpNewFiles(t *testing.T) {
	st := setupTestStore(t)
	w := newTestWatcher(t, st, WithInterval(100*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	writeSpoolProfile(t, w.SpoolDir(), "new.fsp", testProfile("/etc/hosts"))

	deadline := time.Now().Add(5 * time.Second)
	for sessionCount(t, st) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("profile was not ingested within 5s")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHandleFileEvent(t *testing.T) {
	st := setupTestStore(t)
	w := newTestWatcher(t, st)
	path := writeSpoolProfile(t, w.SpoolDir(), "a.fsp", testProfile("/etc/hosts"))

	// Ignored: wrong op, temp file name
	w.handleFileEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	w.handleFileEvent(fsnotify.Event{Name: filepath.Join(w.SpoolDir(), ".fsp-1.tmp"), Op: fsnotify.Create})
	if n := sessionCount(t, st); n != 0 {
		t.Fatalf("sessions = %d after ignored events, want 0", n)
	}

	w.handleFileEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})
	if n := sessionCount(t, st); n != 1 {
		t.Errorf("sessions = %d after create event, want 1", n)
	}
}
