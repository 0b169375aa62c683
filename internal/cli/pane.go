package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/bootstrap"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/pane"
	"github.com/teaxyz/teabase/internal/signing"
	"github.com/teaxyz/teabase/internal/tools"
	"github.com/teaxyz/teabase/internal/ui"
)

// Pane action ids
const (
	actionSSHEnable  = "ssh-enable"
	actionSSHDisable = "ssh-disable"
	actionKeygen     = "ssh-keygen"
	actionCopy       = "ssh-copy"
	actionPassphrase = "ssh-passphrase"
	actionGitHub     = "github"
	actionGPGEnable  = "gpg-enable"
	actionGPGDisable = "gpg-disable"
	actionQuit       = "quit"

	installPrefix = "install-"
	openPrefix    = "open-"
)

var paneCmd = &cobra.Command{
	Use:   "pane",
	Short: "Interactive menu for keys, signing and tools",
	Long: `Show a menu of everything teabase can do, refreshed after every action.

Keys:
  up/down  Move
  enter    Run the highlighted action
  q/esc    Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.Interactive() || MachineMode() {
			return errors.New(errors.ErrConfig,
				"'teabase pane' needs a terminal",
				"Use the subcommands instead, e.g. 'teabase status'")
		}
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return runPane(cmd.Context(), app, cmd.OutOrStdout(), os.Stdin)
		})
	},
}

func init() {
	rootCmd.AddCommand(paneCmd)
}

// pickFn shows the action picker; tests swap it out.
var pickFn = ui.PickAction

// runPane loops: refresh, pick, run, print the outcome. It returns when the
// user quits.
func runPane(ctx context.Context, app *App, out io.Writer, in io.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		snap := app.Pane.Snapshot(ctx)
		choice, err := pickFn("teabase", paneActions(snap), out, in)
		if err != nil {
			return err
		}
		if choice == nil || choice.ID == actionQuit {
			return nil
		}
		o := runPaneAction(ctx, app, out, snap, choice.ID)
		printOutcome(out, o)
		fmt.Fprintln(out)
	}
}

// paneActions lists what makes sense for the current state.
func paneActions(snap pane.Snapshot) []ui.Action {
	var actions []ui.Action

	if snap.Signing.Mode == signing.SSH {
		actions = append(actions, ui.Action{ID: actionSSHDisable, Title: "Stop signing with SSH", State: "on",
			Description: "Turn commit signing off in the global git config"})
	} else {
		desc := "Generate a key and sign commits with it"
		if snap.Key != nil {
			desc = "Sign commits with " + snap.Key.PrivatePath
		}
		actions = append(actions, ui.Action{ID: actionSSHEnable, Title: "Sign commits with SSH", State: "off", Description: desc})
	}

	if snap.Key == nil {
		actions = append(actions, ui.Action{ID: actionKeygen, Title: "Generate an SSH key",
			Description: "Create a new key pair without changing git"})
	} else {
		actions = append(actions,
			ui.Action{ID: actionCopy, Title: "Copy public key", Description: "Put the public key on the clipboard"},
			ui.Action{ID: actionGitHub, Title: "Add key to GitHub", Description: "Open GitHub's new SSH key page"})
		if !snap.Key.HasPassphrase {
			actions = append(actions, ui.Action{ID: actionPassphrase, Title: "Add a passphrase",
				Description: "Encrypt " + snap.Key.PrivatePath})
		}
	}

	if snap.Signing.Mode == signing.GPG {
		actions = append(actions, ui.Action{ID: actionGPGDisable, Title: "Stop signing with GPG", State: "on",
			Description: "Turn commit signing off in the global git config"})
	} else {
		actions = append(actions, ui.Action{ID: actionGPGEnable, Title: "Sign commits with GPG", State: "off",
			Description: "Use your GPG secret key for commit signing"})
	}

	for _, t := range snap.Tools {
		if t.Installed {
			actions = append(actions, ui.Action{ID: openPrefix + string(t.Tool), Title: "Open " + t.Name + " home page",
				State: "installed", Description: t.Path})
		} else {
			actions = append(actions, ui.Action{ID: installPrefix + string(t.Tool), Title: "Install " + t.Name,
				State: "not installed", Description: "Run the official " + t.Name + " installer"})
		}
	}

	return append(actions, ui.Action{ID: actionQuit, Title: "Quit"})
}

// runPaneAction executes one picker choice.
func runPaneAction(ctx context.Context, app *App, out io.Writer, snap pane.Snapshot, id string) bootstrap.Outcome {
	switch id {
	case actionSSHEnable:
		usePassphrase := false
		if snap.Key == nil || !snap.Key.HasPassphrase {
			ok, err := confirmFn("Protect the key with a passphrase?", "You'll enter it when git signs a commit")
			if err != nil {
				return bootstrap.FromError(err, "")
			}
			usePassphrase = ok
		}
		return app.Pane.BootstrapSSHSigning(ctx, usePassphrase)

	case actionSSHDisable:
		return app.Pane.DisableSSHSigning(ctx)

	case actionKeygen:
		ok, err := confirmFn("Protect the key with a passphrase?", "Recommended")
		if err != nil {
			return bootstrap.FromError(err, "")
		}
		return app.Pane.GenerateKey(ctx, app.Keys.Resolve().Algorithm, false, ok)

	case actionPassphrase:
		return app.Pane.SetKeyPassphrase(ctx)

	case actionCopy:
		_, err := app.Pane.CopyPublicKey()
		return bootstrap.FromError(err, "Copied public key to the clipboard")

	case actionGitHub:
		return bootstrap.FromError(app.Pane.OpenGitHubKeys(), "Opened "+pane.GitHubKeysURL)

	case actionGPGEnable:
		return app.Pane.ToggleGPGSigning(ctx, true)

	case actionGPGDisable:
		return app.Pane.ToggleGPGSigning(ctx, false)
	}

	if name, ok := strings.CutPrefix(id, installPrefix); ok {
		return installWithSpinner(ctx, app, out, tools.ID(name))
	}
	if name, ok := strings.CutPrefix(id, openPrefix); ok {
		return bootstrap.FromError(app.Pane.OpenToolHome(tools.ID(name)), "Opened "+name+" home page")
	}

	return bootstrap.FromError(errors.New(errors.ErrConfig, "Unknown action: "+id, ""), "")
}

// installWithSpinner runs the install off the UI goroutine and animates
// until it finishes.
func installWithSpinner(ctx context.Context, app *App, out io.Writer, id tools.ID) bootstrap.Outcome {
	s := ui.NewSpinner("Installing "+string(id), out)
	s.Start()
	o := <-app.Pane.Go(ctx, func(ctx context.Context) bootstrap.Outcome {
		return app.Pane.EnsureToolInstalled(ctx, id)
	})
	switch o.Kind {
	case bootstrap.Success:
		s.Success()
	case bootstrap.UserCancelled:
		s.Skip()
	default:
		s.Fail()
	}
	return o
}
