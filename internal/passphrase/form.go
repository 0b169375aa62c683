package passphrase

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// FormPrompter shows the prompt as a huh form with masked inputs.
type FormPrompter struct {
	// Title is shown above the fields, e.g. the key path.
	Title string
}

func (p FormPrompter) Prompt(ctx context.Context, req Request) (Response, error) {
	var resp Response
	resp.Primary = req.Primary

	title := p.Title
	if title == "" {
		title = "SSH key passphrase"
	}

	var form *huh.Form
	switch req.Mode {
	case ModeVerify:
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(title).
					Description(describe(req, "Enter the passphrase that unlocks this key")).
					EchoMode(huh.EchoModePassword).
					Value(&resp.Primary),
			),
		)
	default:
		desc := fmt.Sprintf("At least %d characters", req.Policy.MinLength)
		if req.Policy.AllowEmpty {
			desc += ". Leave both empty for no passphrase"
		}
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(title).
					Description(describe(req, desc)).
					EchoMode(huh.EchoModePassword).
					Value(&resp.Primary),
				huh.NewInput().
					Title("Confirm passphrase").
					EchoMode(huh.EchoModePassword).
					Value(&resp.Confirm),
			),
		)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return Response{Cancel: true}, nil
		}
		return Response{}, err
	}

	if req.Mode == ModeCreate && req.Policy.AllowEmpty && resp.Primary == "" && resp.Confirm == "" {
		resp.NoPassphrase = true
	}
	return resp, nil
}

func describe(req Request, base string) string {
	if req.Error == "" {
		return base
	}
	return req.Error + "\n" + base
}
