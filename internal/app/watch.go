package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/output"
	"github.com/blackwell-systems/fsprof/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchRemove      bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Ingest spooled profiles as they appear",
		Long: `Watch the spool directory and ingest every profile written to it.

Profiles already in the spool are ingested on start. After that new files are
picked up as soon as they are written, and the whole spool is swept
periodically (watch_interval, 30 seconds by default) to catch anything the
file system notifications missed. A final sweep runs on shutdown.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as a background process
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  fsprof watch

  # Run as background daemon and delete ingested files
  fsprof watch --daemon --remove

  # Stop running daemon
  fsprof watch --stop

  # Use custom PID and log files
  fsprof watch --daemon --pid-file /tmp/watch.pid --log-file /tmp/watch.log`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.fsprof/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.fsprof/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().BoolVar(&watchRemove, "remove", false, "delete spooled profiles once ingested")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	if watchStop {
		return stopWatchDaemon(cmd)
	}

	if watchDaemon {
		return startWatchDaemon(cmd)
	}

	c, err := currentConfig()
	if err != nil {
		return err
	}

	st, err := openStore(true)
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := watcher.New(st, c.SpoolDir, logger,
		watcher.WithInterval(c.WatchInterval),
		watcher.WithRemoveIngested(watchRemove))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// The daemon child has its output redirected to the log file and
	// removes the PID file on the way out.
	if watchDaemonChild {
		return w.Run(commandContext(cmd), watchPIDFile)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)...\n", w.SpoolDir())
	if err := w.Run(commandContext(cmd), ""); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Watcher stopped")
	return nil
}

func stopWatchDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner(out, "Stopping daemon")
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	spinner := output.NewSpinner(out, "Starting daemon")
	spinner.Start()
	if err := watcher.StartDaemon(watchPIDFile, watchLogFile, daemonArgs()...); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nProfile ingest daemon started\n")
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "\nTo stop: fsprof watch --stop\n")

	return nil
}

// daemonArgs forwards the flags that shape the daemon's configuration to
// the re-executed child.
func daemonArgs() []string {
	args := []string{"--pid-file", watchPIDFile}
	if watchRemove {
		args = append(args, "--remove")
	}
	if dbPath != "" {
		args = append(args, "--db", dbPath)
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	return args
}
