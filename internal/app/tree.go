package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/filetree"
	"github.com/blackwell-systems/fsprof/internal/output"
	"github.com/blackwell-systems/fsprof/internal/treemodel"
)

var (
	treeFile       string
	treeFind       string
	treeDepth      int
	treeIgnoreCase bool
	treeFull       bool

	treeCmd = &cobra.Command{
		Use:   "tree [SESSION]",
		Short: "Show the accessed paths as a tree",
		Long: `Aggregate the paths of a session into a tree of path segments with visit
counts.

Each traced call that refers to a path visits the node of that path once.
A directory first seen on the way to a deeper path starts at one and from
then on only counts the calls naming the directory itself. Pseudo paths
such as pipes and sockets, and the placeholder for paths that could not be
resolved, are listed directly below the root.

With --find the tree is searched instead and every matching node is listed
with its full path.`,
		Example: `  # Tree of the latest session
  fsprof tree

  # Only the top two levels
  fsprof tree 6f1c2a9e --depth 2

  # Paths containing "libc", any case
  fsprof tree 6f1c2a9e --find libc -i

  # Tree of a profile file
  fsprof tree --file /tmp/hosts.fsp`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTree,
	}
)

func init() {
	treeCmd.Flags().StringVar(&treeFile, "file", "", "read a profile file instead of a stored session")
	treeCmd.Flags().StringVar(&treeFind, "find", "", "list the nodes whose segment contains this text")
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "stop descending below this depth (0 for all)")
	treeCmd.Flags().BoolVarP(&treeIgnoreCase, "ignore-case", "i", false, "match --find case-insensitively")
	treeCmd.Flags().BoolVar(&treeFull, "full", false, "match --find against whole segments only")
}

func runTree(cmd *cobra.Command, args []string) error {
	if treeDepth < 0 {
		return fmt.Errorf("invalid depth: %d (must not be negative)", treeDepth)
	}

	prof, err := loadProfile(treeFile, args)
	if err != nil {
		return err
	}

	model := filetree.NewModel(filetree.Build(prof))
	out := cmd.OutOrStdout()

	if treeFind != "" {
		flags := treemodel.MatchRecursive
		if treeIgnoreCase {
			flags |= treemodel.MatchCaseInsensitive
		}
		if treeFull {
			flags |= treemodel.MatchFull
		}
		matches := model.Matches(treeFind, flags, treemodel.Index{})
		fmt.Fprint(out, output.RenderMatches(model, matches))
		return nil
	}

	fmt.Fprint(out, output.RenderTree(model, output.TreeOptions{MaxDepth: treeDepth}))
	return nil
}
