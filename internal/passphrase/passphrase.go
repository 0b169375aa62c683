// Package passphrase runs the modal passphrase capture used when protecting
// or unlocking an SSH key.
//
// A capture is a small state machine:
//
//	Idle -> Collecting -> Validating -> Accepted
//	              ^            |
//	              +------------+  (mismatch / too weak, re-prompt)
//	Collecting -> Cancelled       (user declined)
//
// The controller talks to the user only through a Prompter, so the same
// logic drives huh forms, scripted stdin input, and channel-based hosts.
package passphrase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/logger"
)

// State is the controller's position in a capture.
type State int

const (
	Idle State = iota
	Collecting
	Validating
	Accepted
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Validating:
		return "validating"
	case Accepted:
		return "accepted"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultMaxAttempts bounds how often a capture re-prompts before giving up.
const DefaultMaxAttempts = 3

// Policy constrains acceptable passphrases.
type Policy struct {
	MinLength  int
	AllowEmpty bool
}

// DefaultPolicy returns the stock policy: at least 8 characters, and an
// explicit "no passphrase" choice is allowed.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, AllowEmpty: true}
}

// Validate checks a create-mode response against the policy and returns
// the normalized passphrase. An empty result with a nil error means the
// user chose no passphrase.
func (p Policy) Validate(resp Response) (string, error) {
	if resp.NoPassphrase {
		if p.AllowEmpty {
			return "", nil
		}
		return "", errors.New(errors.ErrPassphraseWeak,
			"A passphrase is required",
			"Enter a passphrase to protect your key")
	}

	primary := normalize(resp.Primary)
	confirm := normalize(resp.Confirm)

	if primary != confirm {
		return "", errors.New(errors.ErrPassphraseMismatch,
			"Passphrases don't match",
			"Type the same passphrase in both fields")
	}
	if primary == "" || utf8.RuneCountInString(primary) < p.MinLength {
		return "", errors.New(errors.ErrPassphraseWeak,
			fmt.Sprintf("Passphrase is too short (minimum %d characters)", p.MinLength),
			"Use a longer passphrase, a few random words work well")
	}
	return primary, nil
}

// normalize drops the line ending a terminal or pipe may leave behind.
func normalize(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// Controller captures passphrases through a Prompter. One capture runs at
// a time.
type Controller struct {
	policy      Policy
	prompter    Prompter
	log         logger.Logger
	maxAttempts int

	mu    sync.Mutex
	state State
}

// NewController creates a controller.
func NewController(policy Policy, prompter Prompter, log logger.Logger) *Controller {
	return &Controller{
		policy:      policy,
		prompter:    prompter,
		log:         logger.OrDefault(log),
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetMaxAttempts changes the re-prompt limit. Values below 1 mean unlimited.
func (c *Controller) SetMaxAttempts(n int) {
	c.maxAttempts = n
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// begin claims the controller for a capture.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Collecting || c.state == Validating {
		return errors.New(errors.ErrBusy,
			"A passphrase prompt is already open",
			"Finish or cancel it first")
	}
	c.state = Collecting
	return nil
}

// Capture asks for a new passphrase with confirmation. It returns an empty
// string when the user explicitly chose no passphrase and the policy
// allows it, and a CANCELLED error when the user declined.
func (c *Controller) Capture(ctx context.Context) (string, error) {
	return c.run(ctx, ModeCreate, func(resp Response) (string, error) {
		return c.policy.Validate(resp)
	})
}

// CaptureVerify asks for the passphrase of an existing key. check is
// called with each attempt; a PASSPHRASE_MISMATCH from it re-prompts.
func (c *Controller) CaptureVerify(ctx context.Context, check func(string) error) (string, error) {
	return c.run(ctx, ModeVerify, func(resp Response) (string, error) {
		pass := normalize(resp.Primary)
		if pass == "" {
			return "", errors.New(errors.ErrPassphraseMismatch,
				"Enter the key's passphrase",
				"")
		}
		if err := check(pass); err != nil {
			return "", err
		}
		return pass, nil
	})
}

func (c *Controller) run(ctx context.Context, mode Mode, validate func(Response) (string, error)) (string, error) {
	if err := c.begin(); err != nil {
		return "", err
	}

	req := Request{Mode: mode, Policy: c.policy, Attempt: 1}
	var rejected error
	for {
		resp, err := c.prompter.Prompt(ctx, req)
		if err != nil {
			c.setState(Cancelled)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", errors.FromContext(ctxErr, "Passphrase prompt")
			}
			// A prompter that can't answer a re-prompt leaves the
			// rejection as the reason.
			if rejected != nil {
				return "", rejected
			}
			if errors.CodeOf(err) != "" {
				return "", err
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't ask for a passphrase",
				"Run the command again from a terminal, or use --passphrase-stdin")
		}

		if resp.Cancel {
			c.setState(Cancelled)
			c.log.Info("passphrase entry cancelled by user")
			return "", errors.Cancelled()
		}

		c.setState(Validating)
		pass, err := validate(resp)
		if err == nil {
			c.setState(Accepted)
			c.log.Debug("passphrase accepted after %d attempt(s)", req.Attempt)
			return pass, nil
		}

		code := errors.CodeOf(err)
		if code != errors.ErrPassphraseMismatch && code != errors.ErrPassphraseWeak {
			c.setState(Cancelled)
			return "", err
		}
		c.log.Debug("passphrase attempt %d rejected: %s", req.Attempt, code)
		rejected = err

		if c.maxAttempts > 0 && req.Attempt >= c.maxAttempts {
			c.setState(Cancelled)
			return "", err
		}

		next := Request{
			Mode:    mode,
			Policy:  c.policy,
			Attempt: req.Attempt + 1,
			Error:   errors.UserMessage(err),
		}
		// Keep what was typed in the first field so only the confirmation
		// needs retyping. A wrong unlock passphrase is never echoed back.
		if mode == ModeCreate {
			next.Primary = resp.Primary
		}
		req = next
		c.setState(Collecting)
	}
}
