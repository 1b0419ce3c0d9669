package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bibsort/internal/config"
	"bibsort/internal/errors"
)

// ConfigShowResponse is the response format for config show
type ConfigShowResponse struct {
	ConfigPath   string         `json:"configPath,omitempty" yaml:"configPath,omitempty"`
	UsedDefaults bool           `json:"usedDefaults" yaml:"usedDefaults"`
	Config       *config.Config `json:"config" yaml:"config"`
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bibsort configuration",
		Long:  "View and create the configuration stored in .bibsort/config.toml",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Display the configuration after defaults, the config file and BIBSORT_*
environment overrides are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			return a.print(&ConfigShowResponse{
				ConfigPath:   a.cfg.Source,
				UsedDefaults: a.cfg.Source == "",
				Config:       a.cfg,
			})
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initConfig(root.configPath, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	cmd.AddCommand(show, initCmd)
	return cmd
}

// initConfig writes the defaults to explicit, or to .bibsort/config.toml in
// the working directory.
func initConfig(explicit string, force bool) (string, error) {
	path := explicit
	if path == "" {
		dir, err := os.Getwd()
		if err != nil {
			return "", err
		}
		path = config.ConfigPath(dir)
	}

	if _, err := os.Stat(path); err == nil && !force {
		return "", errors.NewBibsortError(
			errors.ConfigInvalid,
			fmt.Sprintf("%s already exists", path),
			nil,
			[]errors.FixAction{{
				Type:        errors.RunCommand,
				Command:     "bibsort config init --force",
				Description: "Replace it with the defaults",
			}},
		)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return "", errors.NewBibsortError(errors.OutputWrite, "cannot write config", err, nil)
	}
	return filepath.Clean(path), nil
}
