package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workspacex/workspacex/internal/artifact"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	threshold float64
	preN      int
	nextN     int
	artifacts bool // artifact-level results instead of chunks
	format    string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the workspace",
		Long: `Search the workspace with hybrid retrieval. Chunk results include
a window of neighboring chunks for context.

Examples:
  workspacex search "character development"
  workspacex search "error handling" --limit 5 --pre 1 --next 1
  workspacex search "plot summary" --artifacts --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			w, cleanup, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if opts.artifacts {
				results, err := w.RetrieveArtifacts(cmd.Context(), artifact.HybridSearchQuery{
					Query:     query,
					Threshold: opts.threshold,
					Limit:     opts.limit,
				})
				if err != nil {
					return err
				}
				return printArtifactResults(cmd, results, opts.format)
			}

			results, err := w.RetrieveChunks(cmd.Context(), artifact.ChunkSearchQuery{
				Query:     query,
				Threshold: opts.threshold,
				Limit:     opts.limit,
				PreN:      opts.preN,
				NextN:     opts.nextN,
			})
			if err != nil {
				return err
			}
			return printChunkResults(cmd, results, opts.format)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Minimum similarity score (0 uses the default)")
	cmd.Flags().IntVar(&opts.preN, "pre", 0, "Preceding context chunks per hit")
	cmd.Flags().IntVar(&opts.nextN, "next", 0, "Following context chunks per hit")
	cmd.Flags().BoolVar(&opts.artifacts, "artifacts", false, "Return whole artifacts instead of chunks")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printChunkResults(cmd *cobra.Command, results []*artifact.ChunkSearchResult, format string) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s (chunk %d)\n", i+1, r.Score,
			r.Chunk.Metadata.ArtifactID, r.Chunk.Metadata.ChunkIndex)
		fmt.Fprintf(out, "   %s\n", strings.TrimSpace(r.Chunk.Content))
	}
	return nil
}

func printArtifactResults(cmd *cobra.Command, results []*artifact.HybridSearchResult, format string) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s (%s, %s)\n", i+1, r.Score,
			r.Artifact.ID, r.Artifact.Type, r.Artifact.Status)
		if title, ok := r.Artifact.MetadataValue("title").(string); ok && title != "" {
			fmt.Fprintf(out, "   %s\n", title)
		}
	}
	return nil
}
