package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/tools"
	"github.com/teaxyz/teabase/internal/ui"
)

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Install package managers and open their home pages",
}

var toolListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which package managers are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			states := app.Installer.States()
			out := cmd.OutOrStdout()
			if MachineMode() {
				return WriteJSONSuccess(out, toolStatuses(states))
			}
			for _, s := range toolStatuses(states) {
				fmt.Fprintln(out, toolLine(s))
			}
			return nil
		})
	},
}

var toolInstallCmd = &cobra.Command{
	Use:   "install <homebrew|pkgx>",
	Short: "Install a package manager",
	Long: `Install Homebrew or pkgx with its official installer. Nothing happens if
it is already installed.

Examples:
  teabase tool install pkgx
  teabase tool install homebrew`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(tools.Homebrew), string(tools.PkgX)},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := tools.ParseID(args[0])
		if err != nil {
			return err
		}
		o := AppOptions{}
		if !MachineMode() {
			o.InstallOutput = cmd.ErrOrStderr()
		}
		return withApp(cmd, o, func(app *App) error {
			if !MachineMode() {
				if s := app.Installer.State(id); !s.Installed {
					fmt.Fprintf(cmd.ErrOrStderr(), "Installing %s...\n", s.Name)
				}
			}
			return report(cmd.OutOrStdout(), app.Pane.EnsureToolInstalled(cmd.Context(), id))
		})
	},
}

var toolOpenCmd = &cobra.Command{
	Use:       "open <homebrew|pkgx>",
	Short:     "Open a package manager's home page",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(tools.Homebrew), string(tools.PkgX)},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := tools.ParseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return app.Pane.OpenToolHome(id)
		})
	},
}

func init() {
	toolCmd.AddCommand(toolListCmd, toolInstallCmd, toolOpenCmd)
	rootCmd.AddCommand(toolCmd)
}

type toolStatus struct {
	Tool      string `json:"tool"`
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
}

func toolStatuses(states []tools.State) []toolStatus {
	out := make([]toolStatus, 0, len(states))
	for _, s := range states {
		out = append(out, toolStatus{Tool: string(s.Tool), Name: s.Name, Installed: s.Installed, Path: s.Path})
	}
	return out
}

func toolLine(s toolStatus) string {
	if s.Installed {
		return fmt.Sprintf("%s %-10s %s", ui.SuccessStyle().Render(ui.SymbolComplete), s.Name, ui.MutedStyle().Render(s.Path))
	}
	return fmt.Sprintf("%s %-10s %s", ui.MutedStyle().Render(ui.SymbolPending), s.Name, ui.MutedStyle().Render("not installed"))
}
