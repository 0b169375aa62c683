package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teaxyz/teabase/internal/doctor"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/ui"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the SSH key, signing and config setup",
	Long: `Run diagnostic checks to identify and fix common issues.

Checks:
  - Configuration validity
  - git, ssh-keygen and gpg availability
  - SSH key presence, passphrase and file permissions
  - Whether a protected key is loaded in ssh-agent
  - Whether the configured signing key still exists
  - Lock status

Exits 1 when any check fails.

Examples:
  teabase doctor
  teabase doctor --fix
  teabase doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context(), doctorChecks(cmd), cmd.OutOrStdout(), doctorFix)
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")
	rootCmd.AddCommand(doctorCmd)
}

// doctorChecks builds the check list. A config that fails to load still
// gets the config and binary checks so the failure is reported.
func doctorChecks(cmd *cobra.Command) []doctor.Check {
	deps := doctor.Deps{ConfigPath: cfgFile}
	app, err := appFactory(cmd, AppOptions{})
	if err == nil {
		deps.Config = app.Config
		deps.Keys = app.Keys
		deps.Signing = app.Signer
		deps.Locker = app.Locker
	}
	return doctor.Checks(deps)
}

// doctorReport is the JSON output for the doctor command.
type doctorReport struct {
	Categories []doctorCategory `json:"categories"`
	Summary    doctorSummary    `json:"summary"`
}

type doctorCategory struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

type doctorSummary struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

func runDoctor(ctx context.Context, checks []doctor.Check, out io.Writer, fix bool) error {
	results := doctor.RunAll(ctx, checks)

	var fixErr error
	if fix {
		results, fixErr = doctor.FixAll(ctx, checks, results)
	}

	if MachineMode() {
		if err := WriteJSONSuccess(out, buildDoctorReport(results)); err != nil {
			return err
		}
	} else {
		renderDoctor(out, results, fix, fixErr)
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

func buildDoctorReport(results []doctor.CheckResult) doctorReport {
	grouped := doctor.GroupByCategory(results)
	r := doctorReport{Categories: make([]doctorCategory, 0, len(grouped))}
	for _, cat := range doctor.CategoryOrder {
		if rs, ok := grouped[cat]; ok {
			r.Categories = append(r.Categories, doctorCategory{Name: cat, Results: rs})
		}
	}

	counts := doctor.CountByStatus(results)
	r.Summary = doctorSummary{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: counts[doctor.StatusWarn]+counts[doctor.StatusFail] == 0,
	}
	return r
}

func renderDoctor(out io.Writer, results []doctor.CheckResult, fixed bool, fixErr error) {
	header := lipgloss.NewStyle().Bold(true)
	muted := ui.MutedStyle()

	fmt.Fprintln(out)
	fmt.Fprintln(out, header.Render("teabase diagnostic report"))
	fmt.Fprintln(out)

	grouped := doctor.GroupByCategory(results)
	for _, cat := range doctor.CategoryOrder {
		rs, ok := grouped[cat]
		if !ok {
			continue
		}
		fmt.Fprintln(out, header.Render(cat))
		for _, r := range rs {
			renderCheckResult(out, r)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, strings.Repeat("━", 60))
	fmt.Fprintln(out)

	summary := doctor.Summary(results)
	counts := doctor.CountByStatus(results)
	if counts[doctor.StatusWarn]+counts[doctor.StatusFail] == 0 {
		fmt.Fprintf(out, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), summary)
	} else {
		fmt.Fprintf(out, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), summary)
		if doctor.FixableCount(results) > 0 && !fixed {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Run with %s to attempt automatic fixes where possible.\n", muted.Render("--fix"))
		}
	}
	if fixErr != nil {
		fmt.Fprintf(out, "  %s\n", ui.WarningStyle().Render(fixErr.Error()))
	}
	fmt.Fprintln(out)
}

func renderCheckResult(out io.Writer, r doctor.CheckResult) {
	symbol, style := ui.SymbolComplete, ui.SuccessStyle()
	switch r.Status {
	case doctor.StatusWarn:
		style = ui.WarningStyle()
	case doctor.StatusFail:
		symbol, style = ui.SymbolFail, ui.ErrorStyle()
	}

	fmt.Fprintf(out, "  %s %s\n", style.Render(symbol), r.Message)
	if r.Suggestion != "" && r.Status != doctor.StatusPass {
		for _, line := range strings.Split(r.Suggestion, "\n") {
			fmt.Fprintf(out, "    %s\n", ui.MutedStyle().Render(line))
		}
	}
}
