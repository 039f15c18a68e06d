package cli

import (
	"fmt"

	"github.com/sdejongh/dirdiff/pkg/config"
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command
func NewConfigCommand(global *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View or create the dirdiff configuration file.`,
	}

	cmd.AddCommand(newConfigShowCommand(global))
	cmd.AddCommand(newConfigInitCommand(global))

	return cmd
}

func newConfigShowCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the loaded configuration, environment overrides included",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			return config.Encode(cmd.OutOrStdout(), cfg)
		},
	}
}

func newConfigInitCommand(global *GlobalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.ConfigFile
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}

			if !force {
				if exists, err := fileExists(path); err != nil {
					return err
				} else if exists {
					return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
				}
			}

			cfg := config.Default()
			if err := config.SaveToFile(cfg, path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
