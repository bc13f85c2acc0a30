package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/output"
	"github.com/blackwell-systems/fsprof/internal/store"
)

var (
	eventsKinds  []string
	eventsFailed bool
	eventsLimit  int
	eventsCounts bool

	eventsCmd = &cobra.Command{
		Use:   "events [SESSION]",
		Short: "List the traced calls of a session",
		Long: `List the traced calls of a session in the order they were made.

SESSION is a session ID or a unique prefix; without it the most recent
session is shown. Each row shows the time since boot at which the call
started, its descriptor, its outcome (ok or the errno name) and the path it
refers to.`,
		Example: `  # All events of the latest session
  fsprof events

  # Failed opens of one session
  fsprof events 6f1c2a9e --kind open --failed

  # Reads of any kind, first 50
  fsprof events 6f1c2a9e --kind read,pread,readv --limit 50

  # Number of events per kind
  fsprof events 6f1c2a9e --counts`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEvents,
	}
)

func init() {
	eventsCmd.Flags().StringSliceVar(&eventsKinds, "kind", nil, "only show these kinds (open, close, read, pread, readv)")
	eventsCmd.Flags().BoolVar(&eventsFailed, "failed", false, "only show failed calls")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "show at most this many events (0 for all)")
	eventsCmd.Flags().BoolVar(&eventsCounts, "counts", false, "show the number of events per kind instead")
}

func runEvents(cmd *cobra.Command, args []string) error {
	if eventsLimit < 0 {
		return fmt.Errorf("invalid limit: %d (must not be negative)", eventsLimit)
	}
	kinds, err := parseKinds(eventsKinds)
	if err != nil {
		return err
	}

	st, err := openStore(false)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := resolveSession(st, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if eventsCounts {
		counts, err := st.GetKindCounts(sess.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderKindCounts(counts))
		return nil
	}

	events, err := st.GetEvents(sess.ID, store.EventFilter{
		Kinds:      kinds,
		FailedOnly: eventsFailed,
		Limit:      eventsLimit,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderEventTable(events))
	return nil
}
