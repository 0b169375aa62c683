package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/lock"
	"github.com/teaxyz/teabase/internal/ui"
)

var unlockYes bool

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Release a stuck operation lock",
	Long: `Remove the lock another teabase process left behind.

Only needed when a teabase process died while holding the lock and the
lock hasn't gone stale yet. Releasing a lock that is still in use lets
two operations touch your keys and git config at once.

Examples:
  teabase unlock
  teabase unlock --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return runUnlock(app.Locker, cmd.OutOrStdout(), unlockYes)
		})
	},
}

func init() {
	unlockCmd.Flags().BoolVarP(&unlockYes, "yes", "y", false, "don't ask for confirmation")
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(m *lock.Manager, out io.Writer, yes bool) error {
	info := m.Current()
	if info == nil {
		fmt.Fprintf(out, "%s No lock held\n", ui.MutedStyle().Render(ui.SymbolPending))
		return nil
	}

	if !yes {
		if !canPromptFn() {
			return errors.New(errors.ErrLock,
				"Lock held by "+info.String(),
				"Pass --yes to release it without asking")
		}
		ok, err := confirmFn("Release the lock?", "Held by "+info.String())
		if err != nil {
			return err
		}
		if !ok {
			return report(out, cancelledOutcome())
		}
	}

	if err := m.ForceRelease(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Released lock held by %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), info.String())
	return nil
}
