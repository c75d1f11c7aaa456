package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from stored artifacts",
		Long: `Drop the workspace's vector collection and re-chunk and re-embed
every artifact. Use after changing the embedding model or to recover
from an interrupted indexing run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, cleanup, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := w.RebuildIndex(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d artifacts\n", len(w.ListArtifacts()))
			return nil
		},
	}
}
