package app

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func TestWatchCommand(t *testing.T) {
	if watchCmd.Use != "watch" {
		t.Errorf("expected Use to be 'watch', got '%s'", watchCmd.Use)
	}
	if watchCmd.Short == "" || watchCmd.Long == "" || watchCmd.Example == "" {
		t.Error("expected Short, Long and Example to be set")
	}
	if watchCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestWatchCommandFlags(t *testing.T) {
	tests := []struct {
		flagName     string
		shouldHidden bool
	}{
		{"daemon", false},
		{"daemon-child", true},
		{"pid-file", false},
		{"log-file", false},
		{"stop", false},
		{"remove", false},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := watchCmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("expected flag '%s' to be registered", tt.flagName)
			}
			if flag.Hidden != tt.shouldHidden {
				t.Errorf("flag '%s' hidden = %v, want %v", tt.flagName, flag.Hidden, tt.shouldHidden)
			}
		})
	}
}

func TestStopWatchDaemon_NotRunning(t *testing.T) {
	useTestEnv(t)
	setVar(t, &watchStop, true)
	setVar(t, &watchPIDFile, filepath.Join(t.TempDir(), "watch.pid"))

	out, err := runCommand(t, runWatch)
	if err != nil {
		t.Fatalf("runWatch(--stop) error = %v", err)
	}
	if !strings.Contains(out, "Daemon is not running") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestStartWatchDaemon_AlreadyRunning(t *testing.T) {
	useTestEnv(t)
	pidFile := filepath.Join(t.TempDir(), "watch.pid")
	// The test process itself stands in for a running daemon.
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	setVar(t, &watchDaemon, true)
	setVar(t, &watchPIDFile, pidFile)
	setVar(t, &watchLogFile, filepath.Join(t.TempDir(), "watch.log"))

	_, err := runCommand(t, runWatch)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("expected an already-running error, got %v", err)
	}
}

func TestDaemonArgs(t *testing.T) {
	useTestEnv(t)
	setVar(t, &watchPIDFile, "/tmp/w.pid")
	setVar(t, &watchRemove, true)
	setVar(t, &dbPath, "/tmp/f.db")
	setVar(t, &logLevel, "info")

	want := []string{"--pid-file", "/tmp/w.pid", "--remove", "--db", "/tmp/f.db", "--log-level", "info"}
	if got := daemonArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("daemonArgs() = %v, want %v", got, want)
	}
}
