package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/config"
	"github.com/blackwell-systems/fsprof/internal/logging"
)

var (
	dbPath     string
	configPath string
	logLevel   string

	// cfg and logger are set up before any subcommand runs.
	cfg    *config.Config
	logger = logging.Nop()

	// RootCmd is the root command for fsprof
	RootCmd = &cobra.Command{
		Use:   "fsprof",
		Short: "Record and explore file-syscall profiles",
		Long: `fsprof records the file system calls a process makes (open, close, read,
pread, readv), stores them per session and aggregates the accessed paths into
a tree with visit counts.

Profiles are written to a spool directory by 'fsprof record' or by any binary
built on the tracer (such as fsprof-cat) and moved into the database by
'fsprof ingest' or the 'fsprof watch' daemon.

Quick Start:
  1. fsprof record /etc/hosts /etc/passwd
  2. fsprof ingest
  3. fsprof sessions
  4. fsprof tree <session>

Examples:
  # Trace reading some files and keep the profile in the spool
  fsprof record /etc/hosts

  # Keep the database up to date in the background
  fsprof watch --daemon

  # Show the failed opens of a session
  fsprof events 6f1c2a9e --kind open --failed

  # Find every accessed path containing "libc"
  fsprof tree 6f1c2a9e --find libc

  # Summarize a profile file without ingesting it
  fsprof stats --file ./run.fsp`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "fsprof: file-syscall telemetry")
			fmt.Fprintln(out)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "Run 'fsprof record FILE...' and then 'fsprof ingest' to get started.")
			} else {
				fmt.Fprintln(out, "Tip: Run 'fsprof sessions' to list recorded sessions.")
			}
			fmt.Fprintln(out, "Run 'fsprof --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.fsprof/fsprof.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/fsprof/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(recordCmd)
	RootCmd.AddCommand(ingestCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(sessionsCmd)
	RootCmd.AddCommand(eventsCmd)
	RootCmd.AddCommand(treeCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(statusCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// setup loads the configuration, applies the global flags on top of it and
// builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	l, err := logging.New(c.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg, logger = c, l
	return nil
}

func loadConfig() (*config.Config, error) {
	var (
		c   *config.Config
		err error
	)
	if configPath != "" {
		c, err = config.LoadFile(configPath)
	} else {
		var dir string
		if dir, err = config.Dir(); err != nil {
			return nil, err
		}
		c, err = config.Load(dir)
	}
	if err != nil {
		return nil, err
	}

	if dbPath != "" {
		c.DBPath = dbPath
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// currentConfig returns the configuration set up for this run, loading it
// when a command is invoked without the root command's pre-run.
func currentConfig() (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// getDBPath returns the configured database path, creating its directory.
func getDBPath() (string, error) {
	c, err := currentConfig()
	if err != nil {
		return "", err
	}
	if c.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.DBPath), 0755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return c.DBPath, nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	return dataFile("watch.pid")
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	return dataFile("watch.log")
}

func dataFile(name string) (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create fsprof directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

