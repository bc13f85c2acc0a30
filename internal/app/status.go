package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/store"
	"github.com/blackwell-systems/fsprof/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status and database statistics",
	Long: `Display the state of the ingest daemon and the database.

Shows:
  • Daemon running status and PID
  • Database location and size
  • Number of sessions and events stored
  • Profiles waiting in the spool`,
	Example: `  # Check status
  fsprof status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := currentConfig()
	if err != nil {
		return err
	}

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}

	daemonRunning, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	out := cmd.OutOrStdout()
	const label = "%-10s"

	fmt.Fprintln(out)
	if daemonRunning {
		fmt.Fprintf(out, label+"running (since %s, PID %d)\n", "Daemon:", daemonSince(pidFile), daemonPID(pidFile))
	} else {
		fmt.Fprintf(out, label+"stopped  (run 'fsprof watch --daemon')\n", "Daemon:")
	}

	fi, err := os.Stat(c.DBPath)
	if os.IsNotExist(err) {
		fmt.Fprintf(out, label+"%s (not created yet, run 'fsprof ingest')\n", "Database:", c.DBPath)
		fmt.Fprintln(out)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat database: %w", err)
	}
	fmt.Fprintf(out, label+"%s · %s\n", "Database:", c.DBPath, humanize.IBytes(uint64(fi.Size())))

	st, err := openStore(false)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ListSessions()
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprintf(out, label+"not initialized (run 'fsprof ingest')\n", "Sessions:")
		fmt.Fprintln(out)
		return nil
	}
	if err != nil {
		return err
	}
	events, err := st.GetEventCount()
	if err != nil {
		return err
	}

	last := "never"
	if len(sessions) > 0 {
		last = humanize.Time(sessions[0].StartedAt)
	}
	fmt.Fprintf(out, label+"%s · last recorded %s\n", "Sessions:", humanize.Comma(int64(len(sessions))), last)
	fmt.Fprintf(out, label+"%s\n", "Events:", humanize.Comma(int64(events)))

	pending, err := watcher.Pending(st, c.SpoolDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, label+"%s · %d pending\n", "Spool:", c.SpoolDir, pending)

	fmt.Fprintln(out)
	return nil
}

// daemonPID reads the PID recorded for a running daemon.
func daemonPID(pidFile string) int {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}

// daemonSince returns a human-readable age of the PID file (proxy for daemon start time).
func daemonSince(pidFile string) string {
	fi, err := os.Stat(pidFile)
	if err != nil {
		return "unknown"
	}
	return humanize.Time(fi.ModTime())
}
