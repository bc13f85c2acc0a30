// Command fsprof-cat concatenates files to stdout, like cat, with every
// open, read and close going through the fsprof tracer.
//
// When it finishes, the recorded profile is written to the spool directory
// (~/.fsprof/spool by default) for 'fsprof ingest' or 'fsprof watch' to
// pick up. Writing the profile is best-effort: it never changes the exit
// status, which only reflects whether the files could be read.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/blackwell-systems/fsprof/internal/config"
	"github.com/blackwell-systems/fsprof/internal/logging"
	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/recorder"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	name := filepath.Base(os.Args[0])
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s FILE...\n", name)
		return 2
	}

	cfg := loadConfig()
	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		logger = logging.Nop()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := recorder.Options{
		Logger:   logger,
		Table:    cfg.TableOptions(),
		Capacity: cfg.BufferCapacity,
		Command:  name + " " + strings.Join(args, " "),
	}
	prof, _, catErr := recorder.Record(ctx, opts, os.Stdout, args)

	if prof != nil {
		if path, err := recorder.WriteSpool(cfg.SpoolDir, prof); err != nil {
			logger.Debug("failed to spool profile", zap.Error(err))
		} else {
			logger.Debug("spooled profile", zap.String("file", path), zap.Int("events", len(prof.Events)))
		}
	}

	if catErr != nil {
		for _, err := range multierr.Errors(catErr) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		}
		return 1
	}
	return 0
}

// loadConfig reads the fsprof configuration, falling back to the built-in
// defaults when it is missing or invalid.
func loadConfig() *config.Config {
	if dir, err := config.Dir(); err == nil {
		if cfg, err := config.Load(dir); err == nil && cfg.Validate() == nil {
			return cfg
		}
	}

	table := perf.DefaultTableOptions()
	cfg := &config.Config{
		SpoolDir:       filepath.Join(os.TempDir(), "fsprof-spool"),
		LogLevel:       logging.DefaultLevel,
		BufferCapacity: perf.DefaultBufferCapacity,
	}
	cfg.StringTable.MaxEntries = table.MaxEntries
	cfg.StringTable.MaxBytes = table.MaxBytes
	cfg.StringTable.Dedupe = table.Dedupe
	cfg.StringTable.DedupeCache = table.DedupeCacheSize
	if dir, err := config.DataDir(); err == nil {
		cfg.SpoolDir = filepath.Join(dir, "spool")
	}
	return cfg
}
