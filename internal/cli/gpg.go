package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/ui"
)

var gpgKeyFlag string

var gpgCmd = &cobra.Command{
	Use:   "gpg",
	Short: "Manage GPG commit signing",
}

var gpgEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Sign commits with a GPG key",
	Long: `Turn on GPG commit signing in your global git config.

Uses --key, then signing.gpg_key from the config, then the first secret
key gpg knows about.

Examples:
  teabase gpg enable
  teabase gpg enable --key 3AA5C34371567BD2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return report(cmd.OutOrStdout(), app.Pane.SetGPGSigning(cmd.Context(), true, gpgKeyFlag))
		})
	},
}

var gpgDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop signing commits with GPG",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return report(cmd.OutOrStdout(), app.Pane.ToggleGPGSigning(cmd.Context(), false))
		})
	},
}

var gpgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List GPG secret keys usable for signing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			keys, err := app.Signer.GPGKeys(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if MachineMode() {
				return WriteJSONSuccess(out, keys)
			}
			if len(keys) == 0 {
				fmt.Fprintln(out, ui.MutedStyle().Render("No GPG secret keys found"))
				return nil
			}
			for _, k := range keys {
				fmt.Fprintf(out, "%s  %s\n", k.ID, ui.MutedStyle().Render(k.UID))
			}
			return nil
		})
	},
}

func init() {
	gpgEnableCmd.Flags().StringVar(&gpgKeyFlag, "key", "", "GPG key id to sign with")
	gpgCmd.AddCommand(gpgEnableCmd, gpgDisableCmd, gpgListCmd)
	rootCmd.AddCommand(gpgCmd)
}
