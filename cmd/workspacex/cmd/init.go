package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/workspacex/workspacex/internal/config"
)

func newInitCmd() *cobra.Command {
	var name string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a workspace config file with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}

			cfg := config.NewConfig()
			cfg.WorkspaceID = uuid.NewString()
			cfg.Name = name

			raw, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(configPath, raw, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized workspace %s in %s\n", cfg.WorkspaceID, configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable workspace name")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
