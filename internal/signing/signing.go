// Package signing applies the chosen identity as the user's commit-signing
// configuration. It owns exactly four keys in the global store:
// gpg.format, user.signingkey, commit.gpgsign and tag.gpgsign.
package signing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/exec"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/logger"
)

// Owned configuration keys.
const (
	KeyFormat     = "gpg.format"
	KeySigningKey = "user.signingkey"
	KeyCommitSign = "commit.gpgsign"
	KeyTagSign    = "tag.gpgsign"
)

// OwnedKeys lists every key the configurator writes.
var OwnedKeys = []string{KeyFormat, KeySigningKey, KeyCommitSign, KeyTagSign}

// Mode is the signing method.
type Mode int

const (
	None Mode = iota
	SSH
	GPG
)

func (m Mode) String() string {
	switch m {
	case SSH:
		return "ssh"
	case GPG:
		return "gpg"
	}
	return "none"
}

// Preference is the signing identity to apply.
type Preference struct {
	Mode     Mode
	Key      *keystore.KeyPair
	GPGKeyID string

	// Verified records that the key's passphrase was checked during the
	// current session. Required when Key.HasPassphrase is true.
	Verified bool
}

// Options configures a Configurator.
type Options struct {
	SignTags bool

	// Timeout bounds each git/gpg invocation. Zero means no limit.
	Timeout time.Duration
}

// Configurator writes signing preferences to a Store.
type Configurator struct {
	store  Store
	runner exec.Runner
	opts   Options
	log    logger.Logger
}

// New creates a Configurator. runner is used to query gpg.
func New(store Store, runner exec.Runner, opts Options, log logger.Logger) *Configurator {
	if runner == nil {
		runner = exec.NewLocalRunner()
	}
	return &Configurator{
		store:  store,
		runner: runner,
		opts:   opts,
		log:    logger.OrDefault(log),
	}
}

func (c *Configurator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}

// Apply makes pref the active signing configuration. Applying the same
// preference twice is a no-op the second time.
func (c *Configurator) Apply(ctx context.Context, pref Preference) error {
	switch pref.Mode {
	case SSH:
		return c.applySSH(ctx, pref)
	case GPG:
		return c.applyGPG(ctx, pref)
	default:
		return c.clear(ctx)
	}
}

func (c *Configurator) applySSH(ctx context.Context, pref Preference) error {
	if pref.Key == nil {
		return errors.New(errors.ErrKeyUnavailable,
			"No SSH key to sign with",
			"Generate one with 'teabase ssh keygen'")
	}
	// Checked here rather than trusting the caller, the files may have
	// moved since the pair was resolved.
	if !keystore.StillExists(*pref.Key) {
		return errors.New(errors.ErrKeyUnavailable,
			fmt.Sprintf("SSH key is missing: %s", pref.Key.PrivatePath),
			"Generate one with 'teabase ssh keygen'")
	}
	if pref.Key.HasPassphrase && !pref.Verified {
		return errors.New(errors.ErrUnverified,
			"The key's passphrase hasn't been verified",
			"Enter the passphrase when prompted")
	}

	values := []kv{
		{KeyFormat, "ssh"},
		{KeySigningKey, pref.Key.PublicPath},
		{KeyCommitSign, "true"},
	}
	if c.opts.SignTags {
		values = append(values, kv{KeyTagSign, "true"})
	}
	if err := c.write(ctx, values); err != nil {
		return err
	}
	if err := c.dropTagSign(ctx); err != nil {
		return err
	}
	c.log.Info("commit signing enabled with SSH key %s", pref.Key.PublicPath)
	return nil
}

func (c *Configurator) applyGPG(ctx context.Context, pref Preference) error {
	id := strings.TrimSpace(pref.GPGKeyID)
	if id == "" {
		return errors.New(errors.ErrKeyUnavailable,
			"No GPG key selected",
			"Pass --key with a secret key id from 'gpg --list-secret-keys'")
	}

	keys, err := c.GPGKeys(ctx)
	if err != nil {
		return err
	}
	if !HasGPGKey(keys, id) {
		return errors.New(errors.ErrKeyUnavailable,
			fmt.Sprintf("GPG secret key %s not found", id),
			"Check 'gpg --list-secret-keys' for available keys")
	}

	values := []kv{
		{KeyFormat, "openpgp"},
		{KeySigningKey, id},
		{KeyCommitSign, "true"},
	}
	if c.opts.SignTags {
		values = append(values, kv{KeyTagSign, "true"})
	}
	if err := c.write(ctx, values); err != nil {
		return err
	}
	if err := c.dropTagSign(ctx); err != nil {
		return err
	}
	c.log.Info("commit signing enabled with GPG key %s", id)
	return nil
}

func (c *Configurator) clear(ctx context.Context) error {
	for _, key := range OwnedKeys {
		tctx, cancel := c.withTimeout(ctx)
		err := c.store.Unset(tctx, key)
		cancel()
		if err != nil {
			return writeFailed(key, err)
		}
	}
	c.log.Info("commit signing disabled")
	return nil
}

// dropTagSign removes a tag.gpgsign left over from an earlier setup when
// tag signing is off.
func (c *Configurator) dropTagSign(ctx context.Context) error {
	if c.opts.SignTags {
		return nil
	}
	tctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.store.Unset(tctx, KeyTagSign); err != nil {
		return writeFailed(KeyTagSign, err)
	}
	return nil
}

type kv struct {
	key, value string
}

// write sets each value, skipping those already current.
func (c *Configurator) write(ctx context.Context, values []kv) error {
	for _, v := range values {
		tctx, cancel := c.withTimeout(ctx)
		cur, ok, err := c.store.Get(tctx, v.key)
		if err == nil && ok && cur == v.value {
			cancel()
			c.log.Debug("%s already %s", v.key, v.value)
			continue
		}
		err = c.store.Set(tctx, v.key, v.value)
		cancel()
		if err != nil {
			return writeFailed(v.key, err)
		}
	}
	return nil
}

func writeFailed(key string, err error) error {
	if errors.IsCode(err, errors.ErrTimeout) {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrConfigWrite,
		fmt.Sprintf("Couldn't update %s", key),
		"Check that your git config is writable")
}

// Current reads back the owned keys.
func (c *Configurator) Current(ctx context.Context) (Preference, error) {
	get := func(key string) (string, error) {
		tctx, cancel := c.withTimeout(ctx)
		defer cancel()
		v, _, err := c.store.Get(tctx, key)
		return v, err
	}

	sign, err := get(KeyCommitSign)
	if err != nil {
		return Preference{}, err
	}
	if sign != "true" {
		return Preference{Mode: None}, nil
	}

	format, err := get(KeyFormat)
	if err != nil {
		return Preference{}, err
	}
	key, err := get(KeySigningKey)
	if err != nil {
		return Preference{}, err
	}

	if format == "ssh" {
		pair := keystore.KeyPair{
			PublicPath:  key,
			PrivatePath: strings.TrimSuffix(key, ".pub"),
		}
		return Preference{Mode: SSH, Key: &pair}, nil
	}
	return Preference{Mode: GPG, GPGKeyID: key}, nil
}
