package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teaxyz/teabase/internal/config"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/ui"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and inspect the teabase config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Long: `Write ~/.config/teabase/config.yaml (or the --config path) filled in
with the default settings, ready to edit.

Examples:
  teabase config init
  teabase config init --force
  teabase --config ./teabase.yaml config init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configTarget()
		if err := config.WriteDefault(path, configInitForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), config.ExpandHome(path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration teabase would use, after defaults and
TEABASE_* environment overrides are applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if MachineMode() {
			return WriteJSONSuccess(cmd.OutOrStdout(), cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't render config",
				"This shouldn't happen - please report this bug!")
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print which config file is used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Find(cfgFile)
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.DefaultPath(), ui.MutedStyle().Render("(not created, using defaults)"))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configTarget is where 'config init' writes.
func configTarget() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}
