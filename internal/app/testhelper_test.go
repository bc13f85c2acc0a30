package app

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/config"
	"github.com/blackwell-systems/fsprof/internal/perf"
)

// useTestEnv points HOME and XDG_CONFIG_HOME at a temp dir and resets the
// global flags and configuration, restoring them when the test ends.
func useTestEnv(t *testing.T) *config.Config {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	oldCfg, oldLogger := cfg, logger
	oldDB, oldConfig, oldLevel := dbPath, configPath, logLevel
	cfg, dbPath, configPath, logLevel = nil, "", "", ""
	t.Cleanup(func() {
		cfg, logger = oldCfg, oldLogger
		dbPath, configPath, logLevel = oldDB, oldConfig, oldLevel
	})

	c, err := currentConfig()
	if err != nil {
		t.Fatalf("currentConfig() error = %v", err)
	}
	return c
}

// setVar sets a flag variable for the duration of the test.
func setVar[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

// runCommand calls a command's RunE with output captured.
func runCommand(t *testing.T, run func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	err := run(cmd, args)
	return buf.String(), err
}

// testProfile reads /etc/hosts, fails to open /missing and touches a pipe.
func testProfile() *perf.Profile {
	desc := func(fd int32, idx perf.Index) *perf.DescriptorData {
		return &perf.DescriptorData{FD: fd, PathIndex: idx, HasPath: true}
	}
	return &perf.Profile{
		SessionID: uuid.New(),
		PID:       4242,
		Command:   "fsprof-cat /etc/hosts /missing",
		Started:   time.Now().Add(-time.Hour),
		Strings:   []string{"/etc/hosts", "/missing", "pipe:[77]"},
		Events: []perf.Event{
			{Kind: perf.KindOpen, StartMS: 10, Open: &perf.OpenData{PathIndex: 0, HasPath: true, Dirfd: -100}},
			{Kind: perf.KindPread, StartMS: 11, Pread: &perf.PreadData{DescriptorData: *desc(3, 0), Size: 4096}},
			{Kind: perf.KindReadv, StartMS: 12, Descriptor: desc(3, 0)},
			{Kind: perf.KindRead, StartMS: 13, Descriptor: desc(3, 0)},
			{Kind: perf.KindClose, StartMS: 14, Descriptor: desc(3, 0)},
			{Kind: perf.KindOpen, StartMS: 15, Result: perf.Failed(2), Open: &perf.OpenData{PathIndex: 1, HasPath: true, Dirfd: -100}},
			{Kind: perf.KindRead, StartMS: 16, Descriptor: desc(0, 2)},
		},
	}
}

// seedSession stores p in the configured database.
func seedSession(t *testing.T, p *perf.Profile) {
	t.Helper()
	st, err := openStore(true)
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer st.Close()
	if err := st.InsertProfile(p); err != nil {
		t.Fatalf("InsertProfile() error = %v", err)
	}
}
