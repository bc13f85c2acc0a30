package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/recorder"
	"github.com/blackwell-systems/fsprof/internal/watcher"
)

var (
	recordOut    string
	recordPrint  bool
	recordIngest bool

	recordCmd = &cobra.Command{
		Use:   "record FILE...",
		Short: "Trace reading files and save the profile",
		Long: `Read the given files through the traced open, read, pread, readv and close
calls and save the resulting profile.

The profile goes to the spool directory unless --out names a file. Files that
cannot be read are reported; the remaining files are still read and the
profile records the failed calls.`,
		Example: `  # Record into the spool, ingest later
  fsprof record /etc/hosts /etc/passwd

  # Record, print the file contents and ingest right away
  fsprof record --print --ingest /etc/hosts

  # Save the profile somewhere else
  fsprof record --out /tmp/hosts.fsp /etc/hosts`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRecord,
	}
)

func init() {
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "write the profile to this file instead of the spool")
	recordCmd.Flags().BoolVar(&recordPrint, "print", false, "copy the file contents to stdout")
	recordCmd.Flags().BoolVar(&recordIngest, "ingest", false, "ingest the profile into the database right away")
}

func runRecord(cmd *cobra.Command, args []string) error {
	c, err := currentConfig()
	if err != nil {
		return err
	}

	var w io.Writer = io.Discard
	if recordPrint {
		w = cmd.OutOrStdout()
	}

	opts := recorder.Options{
		Logger:   logger,
		Table:    c.TableOptions(),
		Capacity: c.BufferCapacity,
		Command:  "fsprof record " + strings.Join(args, " "),
	}

	prof, stats, catErr := recorder.Record(commandContext(cmd), opts, w, args)
	if prof == nil {
		return catErr
	}

	var path string
	if recordOut != "" {
		path = recordOut
		err = perf.SaveProfile(path, prof)
	} else {
		path, err = recorder.WriteSpool(c.SpoolDir, prof)
	}
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	logger.Debug("saved profile", zap.String("file", path))

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Recorded %s events from %d files (%s copied)\n",
		humanize.Comma(int64(len(prof.Events))), stats.Files, humanize.IBytes(uint64(stats.Bytes)))
	if prof.Dropped > 0 {
		fmt.Fprintf(out, "⚠ %s events dropped: the event buffer was full\n", humanize.Comma(int64(prof.Dropped)))
	}
	fmt.Fprintf(out, "Session: %s\n", prof.SessionID)
	fmt.Fprintf(out, "Profile: %s\n", path)

	if recordIngest {
		st, err := openStore(true)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := watcher.IngestFile(st, path); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		fmt.Fprintln(out, "✓ Ingested")
	}

	if catErr != nil {
		return fmt.Errorf("%d of %d files failed: %w", stats.Failed, stats.Files+stats.Failed, catErr)
	}
	return nil
}
