package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/pane"
	"github.com/teaxyz/teabase/internal/ui"
)

var openCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Open a web link in the browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			if err := app.Pane.OpenExternalLink(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opening %s\n", args[0])
			return nil
		})
	},
}

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Open GitHub's page for adding an SSH key",
	Long: `Open GitHub's "New SSH key" page. Copy your key first with
'teabase ssh copy', then paste it there. Add it once as an
Authentication key and once as a Signing key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			if err := app.Pane.OpenGitHubKeys(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Opening %s\n", pane.GitHubKeysURL)
			if !app.Pane.IsKeyPresent() {
				fmt.Fprintln(out, ui.WarningStyle().Render("No SSH key yet. Run 'teabase ssh keygen' first."))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(openCmd, githubCmd)
}
