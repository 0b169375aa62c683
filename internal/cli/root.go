package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/logger"
	"github.com/teaxyz/teabase/internal/ui"
)

// Global flags
var (
	cfgFile         string
	verbose         bool
	noColor         bool
	passphraseStdin bool
)

var rootCmd = &cobra.Command{
	Use:   "teabase",
	Short: "Set up SSH keys, commit signing and package managers",
	Long: `teabase gets a developer machine ready to work: it creates or reuses an
SSH key, turns on SSH or GPG commit signing in your global git config, and
installs Homebrew or pkgx.

Run 'teabase pane' for an interactive menu, or use the subcommands directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
		ui.ColorMode("auto", noColor, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/teabase/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&passphraseStdin, "passphrase-stdin", false, "read the key passphrase from stdin instead of prompting")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "print machine-readable JSON")
}

// Execute runs the root command and exits with the right status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(handleError(err))
}

// handleError prints err and returns the exit status for it.
func handleError(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}
	if MachineMode() {
		_ = WriteJSONFromError(os.Stdout, err)
		return 1
	}
	if isUnknownCommandError(err) {
		fmt.Fprintln(os.Stderr, err.Error())
		fmt.Fprintln(os.Stderr, "Run 'teabase --help' to see the available commands.")
		return 1
	}
	fmt.Fprint(os.Stderr, ui.ErrorStyle().Render(strings.TrimRight(err.Error(), "\n"))+"\n")
	return 1
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}
