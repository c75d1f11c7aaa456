package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/workspacex/workspacex/internal/workspace"
)

func newInfoCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the workspace artifact tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, cleanup, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			tree := w.Tree()
			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tree)
			}

			fmt.Fprintf(out, "Workspace %s (%s)\n", w.Name(), w.ID())
			for _, node := range tree {
				printTree(out, node, 0)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printTree(out io.Writer, n *workspace.TreeNode, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(out, "  ")
	}
	fmt.Fprintf(out, "- %s [%s, %s, %d chunks]\n", n.ID, n.Type, n.Status, n.Chunks)
	for _, child := range n.Children {
		printTree(out, child, depth+1)
	}
}
