package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/workspacex/workspacex/internal/artifact"
)

// addOptions holds CLI flags for add.
type addOptions struct {
	id       string
	typeName string
}

func newAddCmd() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Add an artifact from a file or stdin",
		Long: `Add an artifact to the workspace. Content is read from the given
file, or from stdin when no file is given. The artifact is chunked,
embedded, and indexed immediately.

Examples:
  workspacex add chapter1.md --type MARKDOWN
  cat notes.txt | workspacex add --id notes-1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := artifact.ParseType(opts.typeName)
			if err != nil {
				return err
			}

			var content []byte
			if len(args) == 1 {
				if content, err = os.ReadFile(args[0]); err != nil {
					return err
				}
			} else {
				if content, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			w, cleanup, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := w.CreateArtifact(cmd.Context(), opts.id, typ, string(content), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added artifact %s (%d chunks)\n", a.ID, len(a.ChunkList))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "Artifact ID (generated when empty)")
	cmd.Flags().StringVarP(&opts.typeName, "type", "t", string(artifact.TypeText), "Artifact type")
	return cmd
}
