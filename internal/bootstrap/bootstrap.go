// Package bootstrap turns one user intent ("sign my commits with SSH",
// "turn GPG signing off", "make me a key") into the sequence of keystore,
// passphrase and signing calls it needs, and reduces the result to a
// single Outcome for display.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/logger"
	"github.com/teaxyz/teabase/internal/signing"
)

// KeyStore is the subset of keystore.Store the coordinator uses.
type KeyStore interface {
	Resolve() keystore.KeyPair
	Exists() bool
	Inspect() (keystore.KeyPair, error)
	Generate(ctx context.Context, opts keystore.GenerateOptions) (keystore.KeyPair, error)
	Verify(pair keystore.KeyPair, passphrase string) error
	Protect(ctx context.Context, pair keystore.KeyPair, passphrase string) (keystore.KeyPair, error)
}

// Passphrases captures passphrases from the user.
type Passphrases interface {
	Capture(ctx context.Context) (string, error)
	CaptureVerify(ctx context.Context, check func(string) error) (string, error)
}

// Signer applies signing preferences.
type Signer interface {
	Apply(ctx context.Context, pref signing.Preference) error
	Current(ctx context.Context) (signing.Preference, error)
	GPGKeys(ctx context.Context) ([]signing.GPGKey, error)
}

// Kind classifies how an operation ended.
type Kind int

const (
	Success Kind = iota
	UserCancelled
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case UserCancelled:
		return "cancelled"
	}
	return "failed"
}

// Outcome is the terminal result of an operation.
type Outcome struct {
	Kind    Kind
	Message string

	// Err is set when Kind is Failed or UserCancelled.
	Err error

	// Key is the pair the operation ended up using, when there is one.
	Key *keystore.KeyPair
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool {
	return o.Kind == Success
}

// Code returns the error code of a failed outcome.
func (o Outcome) Code() string {
	return errors.CodeOf(o.Err)
}

// FromError builds an Outcome for err without logging. A nil err is a
// Success with msg.
func FromError(err error, msg string) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: Success, Message: msg}
	case errors.IsCode(err, errors.ErrCancelled):
		return Outcome{Kind: UserCancelled, Message: "Cancelled", Err: err}
	}
	return Outcome{Kind: Failed, Message: errors.UserMessage(err), Err: err}
}

// Options tunes a Coordinator.
type Options struct {
	// GenerateTimeout bounds key generation. Zero means no limit.
	GenerateTimeout time.Duration

	// GPGKey is used when SetGPGSigning is called without a key id.
	GPGKey string
}

// Coordinator runs user intents to completion.
type Coordinator struct {
	keys   KeyStore
	pass   Passphrases
	signer Signer
	opts   Options
	log    logger.Logger
}

// New creates a Coordinator.
func New(keys KeyStore, pass Passphrases, signer Signer, opts Options, log logger.Logger) *Coordinator {
	return &Coordinator{
		keys:   keys,
		pass:   pass,
		signer: signer,
		opts:   opts,
		log:    logger.OrDefault(log),
	}
}

func (c *Coordinator) succeed(msg string, key *keystore.KeyPair) Outcome {
	c.log.Info("%s", msg)
	return Outcome{Kind: Success, Message: msg, Key: key}
}

// finish reduces err to an Outcome. Cancellation is an expected exit and
// is logged at info.
func (c *Coordinator) finish(op string, err error) Outcome {
	out := FromError(err, "")
	if out.Kind == UserCancelled {
		c.log.Info("%s cancelled by user", op)
	} else {
		c.log.Error("%s failed: %s", op, errors.CodeOf(err))
	}
	return out
}

func (c *Coordinator) generateCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.GenerateTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.GenerateTimeout)
}

// EnableSSHSigning makes the SSH key the commit-signing identity,
// generating it first when there isn't one.
//
// Passphrases are always collected before anything is written, so
// cancelling the prompt leaves no new key and no config change. An existing
// protected key is unlocked once to prove the passphrase is known. An
// existing unprotected key is re-encrypted when protection is requested,
// but only after the signing config is written; if re-encryption fails the
// previous config is put back and the key is left as it was.
func (c *Coordinator) EnableSSHSigning(ctx context.Context, usePassphrase bool) Outcome {
	const op = "enable SSH signing"

	pair, verified, pending, err := c.prepareKey(ctx, usePassphrase)
	if err != nil {
		return c.finish(op, err)
	}

	var prev signing.Preference
	if pending != "" {
		if prev, err = c.signer.Current(ctx); err != nil {
			return c.finish(op, err)
		}
	}

	pref := signing.Preference{Mode: signing.SSH, Key: &pair, Verified: verified}
	if err := c.signer.Apply(ctx, pref); err != nil {
		return c.finish(op, err)
	}

	if pending != "" {
		protected, err := c.keys.Protect(ctx, pair, pending)
		if err != nil {
			c.restore(ctx, prev)
			return c.finish(op, err)
		}
		pair = protected
	}
	return c.succeed(fmt.Sprintf("Commits will be signed with %s", pair.PublicPath), &pair)
}

// restore puts back a signing preference after a later step failed. It runs
// even when ctx is already cancelled.
func (c *Coordinator) restore(ctx context.Context, prev signing.Preference) {
	if err := c.signer.Apply(context.WithoutCancel(ctx), prev); err != nil {
		c.log.Warn("couldn't restore signing config (%s): %s", prev.Mode, errors.UserMessage(err))
		return
	}
	c.log.Debug("signing config restored to %s", prev.Mode)
}

// prepareKey returns a key pair ready to sign with and whether its
// passphrase was confirmed in this session. When an existing unprotected key
// should be protected, the captured passphrase is returned as pending and
// the key is not touched yet.
func (c *Coordinator) prepareKey(ctx context.Context, usePassphrase bool) (pair keystore.KeyPair, verified bool, pending string, err error) {
	if !c.keys.Exists() {
		pass := ""
		if usePassphrase {
			if pass, err = c.pass.Capture(ctx); err != nil {
				return pair, false, "", err
			}
		}
		pair, err = c.generate(ctx, keystore.GenerateOptions{Passphrase: pass})
		return pair, pair.HasPassphrase, "", err
	}

	if pair, err = c.keys.Inspect(); err != nil {
		return pair, false, "", err
	}

	switch {
	case pair.HasPassphrase:
		_, err = c.pass.CaptureVerify(ctx, func(p string) error {
			return c.keys.Verify(pair, p)
		})
		return pair, err == nil, "", err

	case usePassphrase:
		// an empty answer means the user explicitly chose no passphrase
		pending, err = c.pass.Capture(ctx)
		return pair, false, pending, err
	}

	return pair, false, "", nil
}

// SetPassphrase adds a passphrase to the existing unprotected SSH key. The
// signing config is not touched; a protected key keeps working with it.
func (c *Coordinator) SetPassphrase(ctx context.Context) Outcome {
	const op = "set key passphrase"

	if !c.keys.Exists() {
		pair := c.keys.Resolve()
		return c.finish(op, errors.New(errors.ErrKeyUnavailable,
			fmt.Sprintf("No SSH key at %s", pair.PrivatePath),
			"Generate one with 'teabase ssh keygen'"))
	}
	pair, err := c.keys.Inspect()
	if err != nil {
		return c.finish(op, err)
	}
	if pair.HasPassphrase {
		return c.succeed("Key is already protected with a passphrase", &pair)
	}

	pass, err := c.pass.Capture(ctx)
	if err != nil {
		return c.finish(op, err)
	}
	if pass == "" {
		return c.succeed("No passphrase entered, key left unchanged", &pair)
	}

	protected, err := c.keys.Protect(ctx, pair, pass)
	if err != nil {
		return c.finish(op, err)
	}
	return c.succeed(fmt.Sprintf("Passphrase set on %s", protected.PrivatePath), &protected)
}

func (c *Coordinator) generate(ctx context.Context, opts keystore.GenerateOptions) (keystore.KeyPair, error) {
	gctx, cancel := c.generateCtx(ctx)
	defer cancel()
	return c.keys.Generate(gctx, opts)
}

// DisableSSHSigning turns signing off when it is currently SSH-based. GPG
// signing and the key files are left alone.
func (c *Coordinator) DisableSSHSigning(ctx context.Context) Outcome {
	const op = "disable SSH signing"

	cur, err := c.signer.Current(ctx)
	if err != nil {
		return c.finish(op, err)
	}
	if cur.Mode != signing.SSH {
		return c.succeed("SSH signing is already off", nil)
	}
	if err := c.signer.Apply(ctx, signing.Preference{Mode: signing.None}); err != nil {
		return c.finish(op, err)
	}
	return c.succeed("SSH signing disabled", nil)
}

// SetGPGSigning turns GPG signing on with keyID, or off. An empty keyID
// falls back to the configured key and then the first secret key gpg
// knows about.
func (c *Coordinator) SetGPGSigning(ctx context.Context, on bool, keyID string) Outcome {
	if !on {
		const op = "disable GPG signing"
		cur, err := c.signer.Current(ctx)
		if err != nil {
			return c.finish(op, err)
		}
		if cur.Mode != signing.GPG {
			return c.succeed("GPG signing is already off", nil)
		}
		if err := c.signer.Apply(ctx, signing.Preference{Mode: signing.None}); err != nil {
			return c.finish(op, err)
		}
		return c.succeed("GPG signing disabled", nil)
	}

	const op = "enable GPG signing"
	if keyID == "" {
		keyID = c.opts.GPGKey
	}
	if keyID == "" {
		keys, err := c.signer.GPGKeys(ctx)
		if err != nil {
			return c.finish(op, err)
		}
		if len(keys) == 0 {
			return c.finish(op, errors.New(errors.ErrKeyUnavailable,
				"No GPG secret keys found",
				"Create one with 'gpg --full-generate-key'"))
		}
		keyID = keys[0].ID
		c.log.Debug("using first GPG key %s", keyID)
	}

	if err := c.signer.Apply(ctx, signing.Preference{Mode: signing.GPG, GPGKeyID: keyID}); err != nil {
		return c.finish(op, err)
	}
	return c.succeed(fmt.Sprintf("Commits will be signed with GPG key %s", keyID), nil)
}

// GenerateKey creates a key pair without touching the signing config.
// With overwrite, an existing pair at the same path is replaced.
func (c *Coordinator) GenerateKey(ctx context.Context, alg keystore.Algorithm, overwrite, usePassphrase bool) Outcome {
	const op = "generate key"

	if !overwrite && c.keys.Exists() {
		pair := c.keys.Resolve()
		return c.finish(op, errors.New(errors.ErrKeyExists,
			fmt.Sprintf("Key already exists at %s", pair.PrivatePath),
			"Pass --force to replace it"))
	}

	pass := ""
	if usePassphrase {
		var err error
		if pass, err = c.pass.Capture(ctx); err != nil {
			return c.finish(op, err)
		}
	}

	pair, err := c.generate(ctx, keystore.GenerateOptions{
		Algorithm:  alg,
		Passphrase: pass,
		Overwrite:  overwrite,
	})
	if err != nil {
		return c.finish(op, err)
	}
	return c.succeed(fmt.Sprintf("Generated %s key %s", pair.Algorithm, pair.Fingerprint), &pair)
}
