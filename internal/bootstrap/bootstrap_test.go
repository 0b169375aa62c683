package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaxyz/teabase/internal/errors"
	exectest "github.com/teaxyz/teabase/internal/exec/testing"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/logger"
	"github.com/teaxyz/teabase/internal/passphrase"
	"github.com/teaxyz/teabase/internal/signing"
	signingtest "github.com/teaxyz/teabase/internal/signing/testing"
)

const gpgListing = `sec:u:255:22:ABCDEF0123456789:1700000000:::u:::scESC:::+:::ed25519:::0:
fpr:::::::::0123456789ABCDEF0123456789ABCDEF01234567:
uid:u::::1700000000::HASH::Dev Person <dev@example.com>::::::::::0:
`

type harness struct {
	home     string
	keys     *keystore.Store
	prompter *passphrase.ScriptedPrompter
	store    *signingtest.MemoryStore
	runner   *exectest.FakeRunner
	log      *logger.BufferLogger
	coord    *Coordinator
}

func newHarness(t *testing.T, responses ...passphrase.Response) *harness {
	t.Helper()
	h := &harness{
		home:     t.TempDir(),
		prompter: passphrase.NewScriptedPrompter(responses...),
		store:    signingtest.NewMemoryStore(map[string]string{"user.name": "Dev"}),
		runner:   exectest.NewFakeRunner().OnStdout("gpg --list-secret-keys", gpgListing),
		log:      logger.NewBufferLogger(),
	}
	h.keys = keystore.New(keystore.Options{HomeDir: h.home, Comment: "dev@test"}, nil, h.log)
	ctrl := passphrase.NewController(passphrase.DefaultPolicy(), h.prompter, h.log)
	signer := signing.New(h.store, h.runner, signing.Options{}, h.log)
	h.coord = New(h.keys, ctrl, signer, Options{GenerateTimeout: 30 * time.Second}, h.log)
	return h
}

func (h *harness) keyPath() string {
	return filepath.Join(h.home, ".ssh", "id_ed25519")
}

func (h *harness) existingKey(t *testing.T, pass string) keystore.KeyPair {
	t.Helper()
	pair, err := h.keys.Generate(context.Background(), keystore.GenerateOptions{Passphrase: pass})
	require.NoError(t, err)
	return pair
}

func match(p string) passphrase.Response {
	return passphrase.Response{Primary: p, Confirm: p}
}

func TestEnableSSHSigning_NoKeyWithPassphrase(t *testing.T) {
	h := newHarness(t, match("CorrectHorse1"))

	out := h.coord.EnableSSHSigning(context.Background(), true)
	require.True(t, out.OK(), out.Message)
	require.NotNil(t, out.Key)

	assert.True(t, h.keys.Exists())
	pair, err := h.keys.Inspect()
	require.NoError(t, err)
	assert.True(t, pair.HasPassphrase)
	assert.NoError(t, h.keys.Verify(pair, "CorrectHorse1"))

	values := h.store.Values()
	assert.Equal(t, "ssh", values[signing.KeyFormat])
	assert.Equal(t, pair.PublicPath, values[signing.KeySigningKey])
	assert.Equal(t, "true", values[signing.KeyCommitSign])
}

func TestEnableSSHSigning_ExistingKeyNoPassphrase(t *testing.T) {
	h := newHarness(t)
	pair := h.existingKey(t, "")
	before, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)

	out := h.coord.EnableSSHSigning(context.Background(), false)
	require.True(t, out.OK(), out.Message)

	after, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "no generation should occur")
	assert.Empty(t, h.prompter.Requests(), "no prompt for an unprotected key")
	assert.Equal(t, pair.PublicPath, h.store.Values()[signing.KeySigningKey])
}

func TestEnableSSHSigning_NoKeyNoPassphrase(t *testing.T) {
	h := newHarness(t)

	out := h.coord.EnableSSHSigning(context.Background(), false)
	require.True(t, out.OK(), out.Message)
	assert.False(t, out.Key.HasPassphrase)
	assert.Empty(t, h.prompter.Requests())
	assert.Equal(t, "ssh", h.store.Values()[signing.KeyFormat])
}

func TestEnableSSHSigning_CancelBeforeGeneration(t *testing.T) {
	h := newHarness(t, passphrase.Response{Cancel: true})
	before := h.store.Values()

	out := h.coord.EnableSSHSigning(context.Background(), true)
	assert.Equal(t, UserCancelled, out.Kind)
	assert.Equal(t, errors.ErrCancelled, out.Code())

	_, err := os.Stat(h.keyPath())
	assert.True(t, os.IsNotExist(err), "cancel must leave no key behind")
	assert.Equal(t, before, h.store.Values(), "cancel must not change signing config")

	assert.True(t, h.log.Contains("cancelled by user"))
	assert.False(t, h.log.HasLevel("error"))
}

func TestEnableSSHSigning_CancelAfterMismatch(t *testing.T) {
	h := newHarness(t,
		passphrase.Response{Primary: "CorrectHorse1", Confirm: "CorrectHorse2"},
		passphrase.Response{Cancel: true},
	)

	out := h.coord.EnableSSHSigning(context.Background(), true)
	assert.Equal(t, UserCancelled, out.Kind)
	assert.False(t, h.keys.Exists())
	assert.Empty(t, h.store.Values()[signing.KeyFormat])
}

func TestEnableSSHSigning_MismatchThenMatch(t *testing.T) {
	h := newHarness(t,
		passphrase.Response{Primary: "CorrectHorse1", Confirm: "CorrectHorse2"},
		match("CorrectHorse1"),
	)

	out := h.coord.EnableSSHSigning(context.Background(), true)
	require.True(t, out.OK(), out.Message)
	assert.Len(t, h.prompter.Requests(), 2)
}

func TestEnableSSHSigning_ExistingProtectedKeyVerifies(t *testing.T) {
	h := newHarness(t,
		passphrase.Response{Primary: "wrong passphrase"},
		passphrase.Response{Primary: "right passphrase"},
	)
	h.existingKey(t, "right passphrase")

	// Even without asking for protection, a protected key is unlocked once
	out := h.coord.EnableSSHSigning(context.Background(), false)
	require.True(t, out.OK(), out.Message)

	reqs := h.prompter.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, passphrase.ModeVerify, reqs[0].Mode)
	assert.Equal(t, "ssh", h.store.Values()[signing.KeyFormat])
}

func TestEnableSSHSigning_ExistingProtectedKeyCancel(t *testing.T) {
	h := newHarness(t, passphrase.Response{Cancel: true})
	h.existingKey(t, "right passphrase")

	out := h.coord.EnableSSHSigning(context.Background(), true)
	assert.Equal(t, UserCancelled, out.Kind)
	assert.Empty(t, h.store.Values()[signing.KeyFormat])
}

func TestEnableSSHSigning_ProtectsExistingKey(t *testing.T) {
	h := newHarness(t, match("new passphrase"))
	pair := h.existingKey(t, "")

	out := h.coord.EnableSSHSigning(context.Background(), true)
	require.True(t, out.OK(), out.Message)
	assert.True(t, out.Key.HasPassphrase)

	inspected, err := h.keys.Inspect()
	require.NoError(t, err)
	assert.True(t, inspected.HasPassphrase)
	assert.Equal(t, pair.Fingerprint, inspected.Fingerprint, "same key, now encrypted")
}

func TestEnableSSHSigning_ExplicitNoPassphrase(t *testing.T) {
	h := newHarness(t, passphrase.Response{NoPassphrase: true})
	h.existingKey(t, "")

	out := h.coord.EnableSSHSigning(context.Background(), true)
	require.True(t, out.OK(), out.Message)
	assert.False(t, out.Key.HasPassphrase)
}

func TestEnableSSHSigning_ConfigWriteFails(t *testing.T) {
	h := newHarness(t)
	h.existingKey(t, "")
	h.store.FailSet = assert.AnError

	out := h.coord.EnableSSHSigning(context.Background(), false)
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrConfigWrite, out.Code())
	assert.NotEmpty(t, out.Message)
	assert.True(t, h.log.HasLevel("error"))
}

func TestEnableSSHSigning_WeakStdinPassphrase(t *testing.T) {
	h := newHarness(t)
	prompter, err := passphrase.NewReaderPrompter(strings.NewReader("short\n"))
	require.NoError(t, err)
	ctrl := passphrase.NewController(passphrase.DefaultPolicy(), prompter, h.log)
	signer := signing.New(h.store, h.runner, signing.Options{}, h.log)
	coord := New(h.keys, ctrl, signer, Options{}, h.log)

	out := coord.EnableSSHSigning(context.Background(), true)
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrPassphraseWeak, out.Code())
	assert.False(t, h.keys.Exists())
	assert.False(t, h.log.Contains("cancelled by user"))
}

func TestEnableSSHSigning_ProtectWaitsForConfig(t *testing.T) {
	h := newHarness(t, match("new passphrase"))
	pair := h.existingKey(t, "")
	before, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)
	h.store.FailSet = assert.AnError

	out := h.coord.EnableSSHSigning(context.Background(), true)
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrConfigWrite, out.Code())

	after, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "key must stay unencrypted when config can't be written")
}

// protectFails is a KeyStore whose Protect always errors.
type protectFails struct {
	*keystore.Store
}

func (protectFails) Protect(_ context.Context, pair keystore.KeyPair, _ string) (keystore.KeyPair, error) {
	return pair, errors.New(errors.ErrGeneration, "Failed to encrypt private key", "")
}

func TestEnableSSHSigning_ProtectFailureRestoresConfig(t *testing.T) {
	tests := []struct {
		name    string
		initial map[string]string
	}{
		{name: "signing was off", initial: map[string]string{"user.name": "Dev"}},
		{
			name: "gpg was on",
			initial: map[string]string{
				"user.name":           "Dev",
				signing.KeyFormat:     "openpgp",
				signing.KeySigningKey: "ABCDEF0123456789",
				signing.KeyCommitSign: "true",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, match("new passphrase"))
			h.existingKey(t, "")
			store := signingtest.NewMemoryStore(tt.initial)
			signer := signing.New(store, h.runner, signing.Options{}, h.log)
			ctrl := passphrase.NewController(passphrase.DefaultPolicy(), h.prompter, h.log)
			coord := New(protectFails{h.keys}, ctrl, signer, Options{}, h.log)

			out := coord.EnableSSHSigning(context.Background(), true)
			assert.Equal(t, Failed, out.Kind)
			assert.Equal(t, errors.ErrGeneration, out.Code())
			assert.Equal(t, tt.initial, store.Values())

			pair, err := h.keys.Inspect()
			require.NoError(t, err)
			assert.False(t, pair.HasPassphrase)
		})
	}
}

func TestEnableSSHSigning_GenerationTimeout(t *testing.T) {
	h := newHarness(t)
	h.coord.opts.GenerateTimeout = time.Nanosecond

	out := h.coord.EnableSSHSigning(context.Background(), false)
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrTimeout, out.Code())
	assert.Empty(t, h.store.Values()[signing.KeyFormat])
}

func TestEnableSSHSigning_Idempotent(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.coord.EnableSSHSigning(context.Background(), false).OK())
	first := h.store.Values()

	require.True(t, h.coord.EnableSSHSigning(context.Background(), false).OK())
	assert.Equal(t, first, h.store.Values())
}

func TestDisableSSHSigning(t *testing.T) {
	h := newHarness(t)
	pair := h.existingKey(t, "")
	require.True(t, h.coord.EnableSSHSigning(context.Background(), false).OK())

	out := h.coord.DisableSSHSigning(context.Background())
	require.True(t, out.OK())
	assert.Equal(t, map[string]string{"user.name": "Dev"}, h.store.Values())
	assert.True(t, keystore.StillExists(pair))

	// Already off
	out = h.coord.DisableSSHSigning(context.Background())
	assert.True(t, out.OK())
	assert.Contains(t, out.Message, "already off")
}

func TestDisableSSHSigning_LeavesGPGAlone(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.coord.SetGPGSigning(context.Background(), true, "").OK())

	out := h.coord.DisableSSHSigning(context.Background())
	require.True(t, out.OK())
	assert.Equal(t, "openpgp", h.store.Values()[signing.KeyFormat])
}

func TestSetGPGSigning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.coord.SetGPGSigning(ctx, true, "")
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, "ABCDEF0123456789", h.store.Values()[signing.KeySigningKey])

	out = h.coord.SetGPGSigning(ctx, false, "")
	require.True(t, out.OK())
	assert.Empty(t, h.store.Values()[signing.KeyFormat])

	out = h.coord.SetGPGSigning(ctx, false, "")
	assert.Contains(t, out.Message, "already off")
}

func TestSetGPGSigning_UnknownKey(t *testing.T) {
	h := newHarness(t)
	out := h.coord.SetGPGSigning(context.Background(), true, "0000000000000000")
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrKeyUnavailable, out.Code())
}

func TestSetGPGSigning_NoKeys(t *testing.T) {
	h := newHarness(t)
	h.runner.OnStdout("gpg --list-secret-keys", "")

	out := h.coord.SetGPGSigning(context.Background(), true, "")
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrKeyUnavailable, out.Code())
}

func TestSetGPGSigning_ConfiguredKey(t *testing.T) {
	h := newHarness(t)
	h.coord.opts.GPGKey = "0123456789ABCDEF0123456789ABCDEF01234567"

	out := h.coord.SetGPGSigning(context.Background(), true, "")
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, h.coord.opts.GPGKey, h.store.Values()[signing.KeySigningKey])
}

func TestGenerateKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.coord.GenerateKey(ctx, keystore.ECDSA, false, false)
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, keystore.ECDSA, out.Key.Algorithm)
	assert.Empty(t, h.store.Values()[signing.KeyFormat], "generating doesn't enable signing")

	out = h.coord.GenerateKey(ctx, keystore.ECDSA, false, false)
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrKeyExists, out.Code())
}

func TestGenerateKey_OverwriteWithPassphrase(t *testing.T) {
	h := newHarness(t, match("a long passphrase"))
	first := h.existingKey(t, "")

	out := h.coord.GenerateKey(context.Background(), keystore.Ed25519, true, true)
	require.True(t, out.OK(), out.Message)
	assert.NotEqual(t, first.Fingerprint, out.Key.Fingerprint)
	assert.True(t, out.Key.HasPassphrase)
}

func TestGenerateKey_CancelLeavesExistingKey(t *testing.T) {
	h := newHarness(t, passphrase.Response{Cancel: true})
	first := h.existingKey(t, "")
	before, err := os.ReadFile(first.PrivatePath)
	require.NoError(t, err)

	out := h.coord.GenerateKey(context.Background(), keystore.Ed25519, true, true)
	assert.Equal(t, UserCancelled, out.Kind)

	after, err := os.ReadFile(first.PrivatePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetPassphrase(t *testing.T) {
	h := newHarness(t, match("a long passphrase"))
	pair := h.existingKey(t, "")
	before := h.store.Values()

	out := h.coord.SetPassphrase(context.Background())
	require.True(t, out.OK(), out.Message)
	require.NotNil(t, out.Key)
	assert.True(t, out.Key.HasPassphrase)

	inspected, err := h.keys.Inspect()
	require.NoError(t, err)
	assert.Equal(t, pair.Fingerprint, inspected.Fingerprint)
	assert.NoError(t, h.keys.Verify(inspected, "a long passphrase"))
	assert.Equal(t, before, h.store.Values(), "signing config is untouched")
}

func TestSetPassphrase_Cancel(t *testing.T) {
	h := newHarness(t, passphrase.Response{Cancel: true})
	pair := h.existingKey(t, "")
	before, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)

	out := h.coord.SetPassphrase(context.Background())
	assert.Equal(t, UserCancelled, out.Kind)

	after, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, h.log.HasLevel("error"))
}

func TestSetPassphrase_AlreadyProtected(t *testing.T) {
	h := newHarness(t)
	pair := h.existingKey(t, "right passphrase")
	before, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)

	out := h.coord.SetPassphrase(context.Background())
	assert.True(t, out.OK())
	assert.Contains(t, out.Message, "already protected")
	assert.Empty(t, h.prompter.Requests())

	after, err := os.ReadFile(pair.PrivatePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetPassphrase_NoKey(t *testing.T) {
	h := newHarness(t)

	out := h.coord.SetPassphrase(context.Background())
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrKeyUnavailable, out.Code())
	assert.Empty(t, h.prompter.Requests())
}

func TestSetPassphrase_NoneEntered(t *testing.T) {
	h := newHarness(t, passphrase.Response{NoPassphrase: true})
	h.existingKey(t, "")

	out := h.coord.SetPassphrase(context.Background())
	assert.True(t, out.OK())
	assert.False(t, out.Key.HasPassphrase)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "cancelled", UserCancelled.String())
	assert.Equal(t, "failed", Failed.String())
}

func TestFromError(t *testing.T) {
	out := FromError(nil, "done")
	assert.True(t, out.OK())
	assert.Equal(t, "done", out.Message)

	out = FromError(errors.Cancelled(), "")
	assert.Equal(t, UserCancelled, out.Kind)

	out = FromError(errors.NewInstallFailed("pkgx", 3, "boom"), "")
	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, errors.ErrInstall, out.Code())
	assert.NotContains(t, out.Message, "3")
}
