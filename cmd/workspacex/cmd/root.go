// Package cmd provides the CLI commands for workspacex.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workspacex/workspacex/internal/config"
	"github.com/workspacex/workspacex/internal/logging"
	"github.com/workspacex/workspacex/internal/workspace"
	"github.com/workspacex/workspacex/pkg/version"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the workspacex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspacex",
		Short: "Hierarchical artifact store with hybrid chunk retrieval",
		Long: `workspacex manages hierarchical artifacts split into overlapping
chunks, persisted to local or S3-compatible storage, and retrieved
by hybrid vector search with chunk-window context expansion.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("workspacex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "workspacex.yaml", "Path to the config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newSearchCmd(),
		newReindexCmd(),
		newInfoCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// openWorkspace loads the config, sets up logging, and opens the workspace.
// The returned cleanup closes the workspace and the log file.
func openWorkspace(ctx context.Context) (*workspace.Workspace, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}

	_, logCleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	w, err := workspace.Open(ctx, cfg)
	if err != nil {
		logCleanup()
		return nil, nil, err
	}
	cleanup := func() {
		if err := w.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
		logCleanup()
	}
	return w, cleanup, nil
}
