// Package pane is the command interface a host UI drives. Each method is
// one user gesture; the host only maps gestures to calls and Outcomes to
// display state.
//
// Mutating operations share a single slot: a second gesture while one is
// running gets a BUSY outcome straight away instead of queuing behind it.
// The slot also holds the cross-process lock, so two teabase processes
// never interleave either.
package pane

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/teaxyz/teabase/internal/bootstrap"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/lock"
	"github.com/teaxyz/teabase/internal/logger"
	"github.com/teaxyz/teabase/internal/signing"
	"github.com/teaxyz/teabase/internal/tools"
)

// GitHubKeysURL is where a public key is added to a GitHub account.
const GitHubKeysURL = "https://github.com/settings/ssh/new"

// Keys reads the on-disk key pair.
type Keys interface {
	Exists() bool
	Inspect() (keystore.KeyPair, error)
	PublicKey(pair keystore.KeyPair) (string, error)
}

// Coordinator runs the signing workflows.
type Coordinator interface {
	EnableSSHSigning(ctx context.Context, usePassphrase bool) bootstrap.Outcome
	DisableSSHSigning(ctx context.Context) bootstrap.Outcome
	SetGPGSigning(ctx context.Context, on bool, keyID string) bootstrap.Outcome
	GenerateKey(ctx context.Context, alg keystore.Algorithm, overwrite, usePassphrase bool) bootstrap.Outcome
	SetPassphrase(ctx context.Context) bootstrap.Outcome
}

// SigningReader reads the active signing preference.
type SigningReader interface {
	Current(ctx context.Context) (signing.Preference, error)
}

// Tools installs and opens package managers.
type Tools interface {
	EnsureInstalled(ctx context.Context, id tools.ID) error
	OpenHome(id tools.ID) error
	States() []tools.State
}

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New(errors.ErrExec,
			"No clipboard available",
			"Install xclip, xsel or wl-clipboard, or copy the key from 'teabase ssh copy --print'")
	}
	return clipboard.WriteAll(text)
}

// Deps wires an API.
type Deps struct {
	Keys        Keys
	Coordinator Coordinator
	Signing     SigningReader
	Tools       Tools
	Opener      tools.Opener
	Clipboard   Clipboard
	Locker      lock.Locker
	Log         logger.Logger
}

// API is the shell-facing command interface.
type API struct {
	d    Deps
	log  logger.Logger
	slot sync.Mutex
}

// New creates an API. A nil Clipboard means the system clipboard.
func New(d Deps) *API {
	if d.Clipboard == nil {
		d.Clipboard = SystemClipboard{}
	}
	return &API{d: d, log: logger.OrDefault(d.Log)}
}

func busy(holder string) bootstrap.Outcome {
	return bootstrap.FromError(errors.New(errors.ErrBusy,
		"Another operation is still running",
		fmt.Sprintf("Wait for %s to finish", holder)), "")
}

// exclusive runs fn in the operation slot, or reports BUSY without waiting.
func (a *API) exclusive(ctx context.Context, name string, fn func(context.Context) bootstrap.Outcome) bootstrap.Outcome {
	if !a.slot.TryLock() {
		a.log.Debug("%s ignored, another operation is running", name)
		return busy("the current operation")
	}
	defer a.slot.Unlock()

	if a.d.Locker != nil {
		h, err := a.d.Locker.TryAcquire(name)
		if err != nil {
			a.log.Debug("%s ignored: %v", name, err)
			return bootstrap.FromError(err, "")
		}
		defer func() {
			if err := h.Release(); err != nil {
				a.log.Warn("couldn't release lock: %v", err)
			}
		}()
	}

	return fn(ctx)
}

// IsKeyPresent reports whether an SSH key pair is on disk.
func (a *API) IsKeyPresent() bool {
	return a.d.Keys.Exists()
}

// BootstrapSSHSigning enables SSH commit signing, generating and protecting
// a key as needed.
func (a *API) BootstrapSSHSigning(ctx context.Context, useSignPassphrase bool) bootstrap.Outcome {
	return a.exclusive(ctx, "ssh enable", func(ctx context.Context) bootstrap.Outcome {
		return a.d.Coordinator.EnableSSHSigning(ctx, useSignPassphrase)
	})
}

// DisableSSHSigning turns SSH commit signing off.
func (a *API) DisableSSHSigning(ctx context.Context) bootstrap.Outcome {
	return a.exclusive(ctx, "ssh disable", a.d.Coordinator.DisableSSHSigning)
}

// ToggleGPGSigning turns GPG commit signing on with the default key, or off.
func (a *API) ToggleGPGSigning(ctx context.Context, on bool) bootstrap.Outcome {
	return a.SetGPGSigning(ctx, on, "")
}

// SetGPGSigning is ToggleGPGSigning with an explicit key id.
func (a *API) SetGPGSigning(ctx context.Context, on bool, keyID string) bootstrap.Outcome {
	name := "gpg disable"
	if on {
		name = "gpg enable"
	}
	return a.exclusive(ctx, name, func(ctx context.Context) bootstrap.Outcome {
		return a.d.Coordinator.SetGPGSigning(ctx, on, keyID)
	})
}

// GenerateKey creates a key pair without changing signing.
func (a *API) GenerateKey(ctx context.Context, alg keystore.Algorithm, overwrite, usePassphrase bool) bootstrap.Outcome {
	return a.exclusive(ctx, "ssh keygen", func(ctx context.Context) bootstrap.Outcome {
		return a.d.Coordinator.GenerateKey(ctx, alg, overwrite, usePassphrase)
	})
}

// SetKeyPassphrase encrypts the existing unprotected key with a new
// passphrase.
func (a *API) SetKeyPassphrase(ctx context.Context) bootstrap.Outcome {
	return a.exclusive(ctx, "ssh passphrase", a.d.Coordinator.SetPassphrase)
}

// EnsureToolInstalled installs tool unless it is already present.
func (a *API) EnsureToolInstalled(ctx context.Context, tool tools.ID) bootstrap.Outcome {
	return a.exclusive(ctx, "tool install "+string(tool), func(ctx context.Context) bootstrap.Outcome {
		err := a.d.Tools.EnsureInstalled(ctx, tool)
		if err != nil {
			a.log.Error("installing %s failed: %s", tool, errors.CodeOf(err))
		}
		return bootstrap.FromError(err, fmt.Sprintf("%s is installed", tool))
	})
}

// OpenToolHome opens the tool's home page. It doesn't take the slot.
func (a *API) OpenToolHome(tool tools.ID) error {
	return a.d.Tools.OpenHome(tool)
}

// OpenExternalLink opens an http(s) URL in the browser.
func (a *API) OpenExternalLink(link string) error {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Not a web link: %s", link),
			"Only http:// and https:// links can be opened")
	}
	return a.d.Opener.Open(u.String())
}

// OpenGitHubKeys opens GitHub's "new SSH key" page.
func (a *API) OpenGitHubKeys() error {
	return a.OpenExternalLink(GitHubKeysURL)
}

// CopyPublicKey puts the public key on the clipboard and returns it.
func (a *API) CopyPublicKey() (string, error) {
	pair, err := a.d.Keys.Inspect()
	if err != nil {
		return "", err
	}
	pub, err := a.d.Keys.PublicKey(pair)
	if err != nil {
		return "", err
	}
	if err := a.d.Clipboard.WriteAll(pub); err != nil {
		return pub, errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't copy to the clipboard",
			"Copy the key shown above by hand")
	}
	a.log.Debug("copied public key %s", pair.PublicPath)
	return pub, nil
}

// Snapshot is what a host shows after a refresh.
type Snapshot struct {
	KeyPresent bool
	Key        *keystore.KeyPair
	Signing    signing.Preference
	Tools      []tools.State
	Busy       bool
}

// Snapshot gathers key, signing and tool state. Errors reading individual
// parts are logged and leave that part empty.
func (a *API) Snapshot(ctx context.Context) Snapshot {
	var s Snapshot

	if a.slot.TryLock() {
		a.slot.Unlock()
	} else {
		s.Busy = true
	}

	s.KeyPresent = a.d.Keys.Exists()
	if s.KeyPresent {
		if pair, err := a.d.Keys.Inspect(); err == nil {
			s.Key = &pair
		} else {
			a.log.Warn("couldn't read key: %v", errors.UserMessage(err))
		}
	}

	if pref, err := a.d.Signing.Current(ctx); err == nil {
		s.Signing = pref
	} else {
		a.log.Warn("couldn't read signing config: %v", errors.UserMessage(err))
	}

	s.Tools = a.d.Tools.States()
	return s
}

// Go runs op on its own goroutine and delivers its Outcome on the returned
// channel, which is closed afterwards.
func (a *API) Go(ctx context.Context, op func(context.Context) bootstrap.Outcome) <-chan bootstrap.Outcome {
	ch := make(chan bootstrap.Outcome, 1)
	go func() {
		defer close(ch)
		ch <- op(ctx)
	}()
	return ch
}
