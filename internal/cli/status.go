package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/pane"
	"github.com/teaxyz/teabase/internal/signing"
	"github.com/teaxyz/teabase/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the SSH key, signing and package manager state",
	Long: `Display what teabase knows about this machine:

  - The SSH key (path, type, fingerprint, passphrase)
  - Which commit signing mode git is using
  - Which package managers are installed
  - Whether another teabase operation holds the lock

Examples:
  teabase status
  teabase status --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, AppOptions{}, func(app *App) error {
			return runStatus(cmd.Context(), app, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type keyStatus struct {
	Path        string `json:"path"`
	Algorithm   string `json:"algorithm"`
	Fingerprint string `json:"fingerprint"`
	Protected   bool   `json:"protected"`
}

type signingStatus struct {
	Mode string `json:"mode"`
	Key  string `json:"key,omitempty"`
}

type statusReport struct {
	Key     *keyStatus    `json:"key,omitempty"`
	Signing signingStatus `json:"signing"`
	Tools   []toolStatus  `json:"tools"`
	Lock    string        `json:"lock,omitempty"`
}

func buildStatus(snap pane.Snapshot, lockHolder string) statusReport {
	r := statusReport{
		Signing: signingStatus{Mode: snap.Signing.Mode.String()},
		Tools:   toolStatuses(snap.Tools),
		Lock:    lockHolder,
	}
	if snap.Key != nil {
		r.Key = &keyStatus{
			Path:        snap.Key.PrivatePath,
			Algorithm:   string(snap.Key.Algorithm),
			Fingerprint: snap.Key.Fingerprint,
			Protected:   snap.Key.HasPassphrase,
		}
	}
	switch snap.Signing.Mode {
	case signing.SSH:
		if snap.Signing.Key != nil {
			r.Signing.Key = snap.Signing.Key.PublicPath
		}
	case signing.GPG:
		r.Signing.Key = snap.Signing.GPGKeyID
	}
	return r
}

func runStatus(ctx context.Context, app *App, out io.Writer) error {
	var holder string
	if info := app.Locker.Current(); info != nil {
		holder = info.String()
	}
	r := buildStatus(app.Pane.Snapshot(ctx), holder)

	if MachineMode() {
		return WriteJSONSuccess(out, r)
	}
	renderStatus(out, r)
	return nil
}

func renderStatus(out io.Writer, r statusReport) {
	muted := ui.MutedStyle()

	fmt.Fprintln(out, ui.TitleStyle().Render("SSH key"))
	if r.Key == nil {
		fmt.Fprintf(out, "  %s %s\n", muted.Render(ui.SymbolPending), "none (run 'teabase ssh keygen')")
	} else {
		protection := "no passphrase"
		if r.Key.Protected {
			protection = "passphrase protected"
		}
		fmt.Fprintf(out, "  %s %s\n", ui.SuccessStyle().Render(ui.SymbolComplete), r.Key.Path)
		fmt.Fprintf(out, "    %s\n", muted.Render(fmt.Sprintf("%s, %s", r.Key.Algorithm, protection)))
		fmt.Fprintf(out, "    %s\n", muted.Render(r.Key.Fingerprint))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.TitleStyle().Render("Commit signing"))
	if r.Signing.Mode == signing.None.String() {
		fmt.Fprintf(out, "  %s off\n", muted.Render(ui.SymbolPending))
	} else {
		fmt.Fprintf(out, "  %s %s %s\n", ui.SuccessStyle().Render(ui.SymbolComplete), r.Signing.Mode, muted.Render(r.Signing.Key))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.TitleStyle().Render("Package managers"))
	for _, t := range r.Tools {
		fmt.Fprintf(out, "  %s\n", toolLine(t))
	}

	if r.Lock != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s Busy: %s\n", ui.WarningStyle().Render(ui.SymbolProgress), r.Lock)
	}
}
