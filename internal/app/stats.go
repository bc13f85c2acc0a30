package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/analyzer"
	"github.com/blackwell-systems/fsprof/internal/output"
)

var (
	statsFile string
	statsTop  int
)

var statsCmd = &cobra.Command{
	Use:   "stats [SESSION]",
	Short: "Summarize a session",
	Long: `Summarize a session: how many calls of each kind were made and how many
failed, the failures grouped by errno, the time span covered and the paths
and directories visited most.

SESSION is a session ID or a unique prefix; without it the most recent
session is summarized. --file summarizes a profile file that has not been
ingested.`,
	Example: `  # Summary of the latest session
  fsprof stats

  # Top 20 paths of a session
  fsprof stats 6f1c2a9e --top 20

  # Summary of a profile file
  fsprof stats --file /tmp/hosts.fsp`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFile, "file", "", "read a profile file instead of a stored session")
	statsCmd.Flags().IntVar(&statsTop, "top", analyzer.DefaultTopN, "number of paths and directories to rank")
}

func runStats(cmd *cobra.Command, args []string) error {
	// Validate flags
	if statsTop <= 0 {
		return fmt.Errorf("invalid top: %d (must be positive)", statsTop)
	}

	var summary *analyzer.Summary
	if statsFile != "" || len(args) == 0 {
		prof, err := loadProfile(statsFile, args)
		if err != nil {
			return err
		}
		summary = analyzer.Summarize(prof, statsTop)
	} else {
		st, err := openStore(false)
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err = analyzer.New(st).SessionSummary(args[0], statsTop)
		if err != nil {
			return err
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderSummary(summary))
	return nil
}
