package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/blackwell-systems/fsprof/internal/output"
	"github.com/blackwell-systems/fsprof/internal/watcher"
)

var (
	ingestRemove bool

	ingestCmd = &cobra.Command{
		Use:   "ingest [PROFILE...]",
		Short: "Load profiles into the database",
		Long: `Load profile files into the database.

Without arguments every finished profile in the spool directory is ingested,
the same pass 'fsprof watch' makes periodically. Profiles that do not decode
are renamed with a .bad suffix so they are not retried.

Ingesting is idempotent: a file or session that is already in the database
is skipped.`,
		Example: `  # Ingest the spool
  fsprof ingest

  # Ingest and delete the spooled files
  fsprof ingest --remove

  # Ingest specific profile files
  fsprof ingest /tmp/a.fsp /tmp/b.fsp`,
		RunE: runIngest,
	}
)

func init() {
	ingestCmd.Flags().BoolVar(&ingestRemove, "remove", false, "delete spooled profiles once ingested")
}

func runIngest(cmd *cobra.Command, args []string) error {
	c, err := currentConfig()
	if err != nil {
		return err
	}

	st, err := openStore(true)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		spinner := output.NewSpinner(cmd.ErrOrStderr(), "Ingesting "+c.SpoolDir)
		spinner.Start()
		stats, err := watcher.Sweep(st, c.SpoolDir, ingestRemove, logger)
		spinner.Stop()
		if err != nil {
			return fmt.Errorf("failed to ingest spool: %w", err)
		}

		fmt.Fprintf(out, "Ingested %d, skipped %d, failed %d\n", stats.Ingested, stats.Skipped, stats.Failed)
		if stats.Failed > 0 {
			return fmt.Errorf("%d profiles could not be ingested", stats.Failed)
		}
		return nil
	}

	var (
		errs              error
		ingested, skipped int
	)
	progress := output.NewProgress(cmd.ErrOrStderr(), len(args), "Ingesting profiles")
	for _, path := range args {
		res, err := watcher.IngestFile(st, path)
		progress.Increment()
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
		case res.Skipped:
			skipped++
		default:
			ingested++
			logger.Info("ingested profile", zap.String("file", path), zap.Stringer("session", res.SessionID))
		}
	}
	progress.Finish()

	fmt.Fprintf(out, "Ingested %d, skipped %d, failed %d\n", ingested, skipped, len(multierr.Errors(errs)))
	return errs
}
