package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/ui"
)

// SSH command flags
var (
	sshEnablePassphrase bool
	keygenType          string
	keygenForce         bool
	keygenPassphrase    bool
	copyPrint           bool
)

var sshCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Manage the SSH key and SSH commit signing",
}

var sshEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Sign commits with your SSH key",
	Long: `Turn on SSH commit signing in your global git config.

If there is no SSH key yet, one is generated first. A key that is already
protected by a passphrase is unlocked once to prove it's yours before it
is used.

Examples:
  teabase ssh enable
  teabase ssh enable --passphrase`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return report(cmd.OutOrStdout(), app.Pane.BootstrapSSHSigning(cmd.Context(), sshEnablePassphrase))
		})
	},
}

var sshDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop signing commits with SSH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return report(cmd.OutOrStdout(), app.Pane.DisableSSHSigning(cmd.Context()))
		})
	},
}

var sshKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an SSH key pair",
	Long: `Generate a new SSH key pair without touching your git config.

Examples:
  teabase ssh keygen
  teabase ssh keygen --type rsa
  teabase ssh keygen --force --passphrase`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return runKeygen(cmd.Context(), app, cmd.OutOrStdout(), keygenType, keygenForce, keygenPassphrase)
		})
	},
}

var sshPassphraseCmd = &cobra.Command{
	Use:   "passphrase",
	Short: "Add a passphrase to your SSH key",
	Long: `Encrypt the existing SSH private key with a passphrase. The key
itself and your git config stay the same.

A key that already has a passphrase is left alone; change it with
'ssh-keygen -p'.

Examples:
  teabase ssh passphrase
  echo "$PASS" | teabase ssh passphrase --passphrase-stdin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return report(cmd.OutOrStdout(), app.Pane.SetKeyPassphrase(cmd.Context()))
		})
	},
}

var sshCopyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy your SSH public key to the clipboard",
	Long: `Copy the SSH public key to the clipboard so it can be pasted into
GitHub (see 'teabase github').

Examples:
  teabase ssh copy
  teabase ssh copy --print > key.pub`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return runCopy(app, cmd.OutOrStdout(), copyPrint)
		})
	},
}

func init() {
	sshEnableCmd.Flags().BoolVar(&sshEnablePassphrase, "passphrase", false, "protect a new or unprotected key with a passphrase")
	sshKeygenCmd.Flags().StringVarP(&keygenType, "type", "t", "", "key type: ed25519, ecdsa or rsa (default from config)")
	sshKeygenCmd.Flags().BoolVarP(&keygenForce, "force", "f", false, "replace an existing key")
	sshKeygenCmd.Flags().BoolVar(&keygenPassphrase, "passphrase", false, "protect the new key with a passphrase")
	sshCopyCmd.Flags().BoolVar(&copyPrint, "print", false, "print the key instead of copying it")

	sshCmd.AddCommand(sshEnableCmd, sshDisableCmd, sshKeygenCmd, sshPassphraseCmd, sshCopyCmd)
	rootCmd.AddCommand(sshCmd)
}

// runKeygen generates a key, asking before replacing one when a terminal
// is available.
func runKeygen(ctx context.Context, app *App, out io.Writer, typ string, force, usePassphrase bool) error {
	alg, err := keystore.ParseAlgorithm(app.Config.Keys.Algorithm)
	if typ != "" {
		alg, err = keystore.ParseAlgorithm(typ)
	}
	if err != nil {
		return err
	}

	sameSlot := strings.EqualFold(string(alg), app.Config.Keys.Algorithm)
	if !force && sameSlot && app.Pane.IsKeyPresent() && canPromptFn() {
		path := app.Keys.Resolve().PrivatePath
		ok, err := confirmFn(
			"Replace the existing SSH key?",
			fmt.Sprintf("%s will be overwritten. Anything using the old key stops working.", path))
		if err != nil {
			return err
		}
		if !ok {
			return report(out, cancelledOutcome())
		}
		force = true
	}

	return report(out, app.Pane.GenerateKey(ctx, alg, force, usePassphrase))
}

// runCopy copies or prints the public key.
func runCopy(app *App, out io.Writer, printOnly bool) error {
	if printOnly {
		pair, err := app.Keys.Inspect()
		if err != nil {
			return err
		}
		pub, err := app.Keys.PublicKey(pair)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, pub)
		return nil
	}

	pub, err := app.Pane.CopyPublicKey()
	if err != nil {
		if pub != "" {
			fmt.Fprintln(out, pub)
		}
		return err
	}
	fmt.Fprintf(out, "%s Copied public key to the clipboard\n", ui.SuccessStyle().Render(ui.SymbolSuccess))
	fmt.Fprintln(out, ui.MutedStyle().Render(pub))
	return nil
}
