package cli

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/teaxyz/teabase/internal/bootstrap"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/ui"
)

// exitCancelled is the status for a user-cancelled operation.
const exitCancelled = 130

type outcomeJSON struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// printOutcome writes a one-line summary of o.
func printOutcome(out io.Writer, o bootstrap.Outcome) {
	switch o.Kind {
	case bootstrap.Success:
		fmt.Fprintf(out, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), o.Message)
	case bootstrap.UserCancelled:
		fmt.Fprintf(out, "%s %s\n", ui.WarningStyle().Render(ui.SymbolSkipped), o.Message)
	default:
		fmt.Fprintf(out, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), o.Message)
	}
}

// report prints o and converts it into the command's result. A cancel
// exits with 130 without printing an error.
func report(out io.Writer, o bootstrap.Outcome) error {
	if MachineMode() {
		switch o.Kind {
		case bootstrap.Success:
			data := outcomeJSON{Status: o.Kind.String(), Message: o.Message}
			if o.Key != nil {
				data.Key = o.Key.PrivatePath
			}
			return WriteJSONSuccess(out, data)
		case bootstrap.UserCancelled:
			_ = WriteJSONFromError(out, o.Err)
			return errors.NewExitError(exitCancelled)
		}
		return o.Err
	}

	switch o.Kind {
	case bootstrap.Success:
		printOutcome(out, o)
		return nil
	case bootstrap.UserCancelled:
		printOutcome(out, o)
		return errors.NewExitError(exitCancelled)
	}
	return o.Err
}

func cancelledOutcome() bootstrap.Outcome {
	return bootstrap.FromError(errors.Cancelled(), "")
}

// confirmFn asks a yes/no question; tests swap it out.
var confirmFn = func(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if stderrors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// canPrompt reports whether interactive questions may be asked.
func canPrompt() bool {
	return !MachineMode() && ui.Interactive()
}

// canPromptFn is swapped in tests.
var canPromptFn = canPrompt
