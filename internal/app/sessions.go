package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/output"
)

var (
	sessionsDelete string

	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Long: `List the sessions in the database, most recent first.

Sessions are addressed by their ID or any unique prefix of it, such as the
eight characters shown in the table.`,
		Example: `  # List sessions
  fsprof sessions

  # Delete a session and its events
  fsprof sessions --delete 6f1c2a9e`,
		Args: cobra.NoArgs,
		RunE: runSessions,
	}
)

func init() {
	sessionsCmd.Flags().StringVar(&sessionsDelete, "delete", "", "delete the session with this ID or prefix")
}

func runSessions(cmd *cobra.Command, args []string) error {
	st, err := openStore(false)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if sessionsDelete != "" {
		sess, err := st.FindSession(sessionsDelete)
		if err != nil {
			return err
		}
		if err := st.DeleteSession(sess.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Deleted session %s (%d events)\n", sess.ID, sess.EventCount)
		return nil
	}

	sessions, err := st.ListSessions()
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderSessionTable(sessions))
	return nil
}
