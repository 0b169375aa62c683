package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/passphrase"
	"github.com/teaxyz/teabase/internal/signing"
)

func TestSSHEnable_GeneratesKeyAndConfiguresSigning(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer

	err := report(&out, env.app.Pane.BootstrapSSHSigning(context.Background(), false))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Commits will be signed with")
	assert.Equal(t, "ssh", env.signingValue(t, signing.KeyFormat))
	assert.Equal(t, "true", env.signingValue(t, signing.KeyCommitSign))
	assert.Equal(t, env.keyPath()+".pub", env.signingValue(t, signing.KeySigningKey))

	info, err := os.Stat(env.keyPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSSHEnable_CancelLeavesNothing(t *testing.T) {
	env := newTestEnv(t, passphrase.Response{Cancel: true})
	var out bytes.Buffer

	err := report(&out, env.app.Pane.BootstrapSSHSigning(context.Background(), true))

	code, ok := tberrors.GetExitCode(err)
	require.True(t, ok)
	assert.Equal(t, exitCancelled, code)
	assert.Contains(t, out.String(), "Cancelled")
	assert.NoFileExists(t, env.keyPath())
	assert.NoFileExists(t, env.signingFile)
}

func TestSSHDisable_TurnsSSHSigningOff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.True(t, env.app.Pane.BootstrapSSHSigning(ctx, false).OK())

	var out bytes.Buffer
	require.NoError(t, report(&out, env.app.Pane.DisableSSHSigning(ctx)))

	assert.Empty(t, env.signingValue(t, signing.KeyCommitSign))
	assert.FileExists(t, env.keyPath(), "disabling signing keeps the key")
}

func TestRunKeygen(t *testing.T) {
	t.Run("generates with configured type", func(t *testing.T) {
		env := newTestEnv(t)
		var out bytes.Buffer

		require.NoError(t, runKeygen(context.Background(), env.app, &out, "", false, false))
		assert.Contains(t, out.String(), "Generated ed25519 key SHA256:")
		assert.FileExists(t, env.keyPath())
		assert.NoFileExists(t, env.signingFile, "keygen leaves signing alone")
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		env := newTestEnv(t)
		err := runKeygen(context.Background(), env.app, &bytes.Buffer{}, "dsa", false, false)
		assert.True(t, tberrors.IsCode(err, tberrors.ErrGeneration))
	})

	t.Run("existing key without a terminal", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		require.NoError(t, runKeygen(ctx, env.app, &bytes.Buffer{}, "", false, false))

		err := runKeygen(ctx, env.app, &bytes.Buffer{}, "", false, false)
		assert.True(t, tberrors.IsCode(err, tberrors.ErrKeyExists))
	})

	t.Run("declining the replace prompt keeps the key", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		require.NoError(t, runKeygen(ctx, env.app, &bytes.Buffer{}, "", false, false))
		before, err := env.app.Keys.Inspect()
		require.NoError(t, err)

		canPromptFn = func() bool { return true }
		var asked string
		confirmFn = func(title, desc string) (bool, error) {
			asked = desc
			return false, nil
		}

		var out bytes.Buffer
		err = runKeygen(ctx, env.app, &out, "", false, false)
		code, ok := tberrors.GetExitCode(err)
		require.True(t, ok)
		assert.Equal(t, exitCancelled, code)
		assert.Contains(t, asked, env.keyPath())

		after, err := env.app.Keys.Inspect()
		require.NoError(t, err)
		assert.Equal(t, before.Fingerprint, after.Fingerprint)
	})

	t.Run("accepting the replace prompt overwrites", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		require.NoError(t, runKeygen(ctx, env.app, &bytes.Buffer{}, "", false, false))
		before, err := env.app.Keys.Inspect()
		require.NoError(t, err)

		canPromptFn = func() bool { return true }
		confirmFn = func(string, string) (bool, error) { return true, nil }

		require.NoError(t, runKeygen(ctx, env.app, &bytes.Buffer{}, "", false, false))
		after, err := env.app.Keys.Inspect()
		require.NoError(t, err)
		assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	})

	t.Run("protects with a passphrase", func(t *testing.T) {
		env := newTestEnv(t, passphrase.Response{Primary: "hunter2hunter2", Confirm: "hunter2hunter2"})
		ctx := context.Background()

		require.NoError(t, runKeygen(ctx, env.app, &bytes.Buffer{}, string(keystore.ECDSA), false, true))

		pair, err := env.app.Keys.Inspect()
		require.NoError(t, err)
		assert.True(t, pair.HasPassphrase)
		assert.Equal(t, keystore.ECDSA, pair.Algorithm)
	})
}

func TestSSHPassphrase(t *testing.T) {
	t.Run("protects an existing key", func(t *testing.T) {
		env := newTestEnv(t, passphrase.Response{Primary: "hunter2hunter2", Confirm: "hunter2hunter2"})
		require.NoError(t, runKeygen(context.Background(), env.app, &bytes.Buffer{}, "", false, false))
		before, err := env.app.Keys.Inspect()
		require.NoError(t, err)

		out, err := execute(t, env, "--no-color", "ssh", "passphrase")
		require.NoError(t, err)
		assert.Contains(t, out, "Passphrase set on "+env.keyPath())

		after, err := env.app.Keys.Inspect()
		require.NoError(t, err)
		assert.True(t, after.HasPassphrase)
		assert.Equal(t, before.Fingerprint, after.Fingerprint)
		assert.NoFileExists(t, env.signingFile, "git config is untouched")
	})

	t.Run("cancel keeps the key unprotected", func(t *testing.T) {
		env := newTestEnv(t, passphrase.Response{Cancel: true})
		require.NoError(t, runKeygen(context.Background(), env.app, &bytes.Buffer{}, "", false, false))

		_, err := execute(t, env, "--no-color", "ssh", "passphrase")
		code, ok := tberrors.GetExitCode(err)
		require.True(t, ok)
		assert.Equal(t, exitCancelled, code)

		pair, err := env.app.Keys.Inspect()
		require.NoError(t, err)
		assert.False(t, pair.HasPassphrase)
	})

	t.Run("already protected", func(t *testing.T) {
		env := newTestEnv(t, passphrase.Response{Primary: "hunter2hunter2", Confirm: "hunter2hunter2"})
		require.NoError(t, runKeygen(context.Background(), env.app, &bytes.Buffer{}, "", false, true))

		out, err := execute(t, env, "--no-color", "ssh", "passphrase")
		require.NoError(t, err)
		assert.Contains(t, out, "already protected")
	})

	t.Run("no key", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := execute(t, env, "--no-color", "ssh", "passphrase")
		assert.True(t, tberrors.IsCode(err, tberrors.ErrKeyUnavailable))
	})
}

func TestRunCopy(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		env := newTestEnv(t)
		err := runCopy(env.app, &bytes.Buffer{}, false)
		assert.True(t, tberrors.IsCode(err, tberrors.ErrKeyUnavailable))
	})

	t.Run("print", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, runKeygen(context.Background(), env.app, &bytes.Buffer{}, "", false, false))

		var out bytes.Buffer
		require.NoError(t, runCopy(env.app, &out, true))
		assert.Contains(t, out.String(), "ssh-ed25519 ")
		assert.Empty(t, env.clip.text, "--print skips the clipboard")
	})

	t.Run("clipboard", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, runKeygen(context.Background(), env.app, &bytes.Buffer{}, "", false, false))

		var out bytes.Buffer
		require.NoError(t, runCopy(env.app, &out, false))
		assert.Contains(t, env.clip.text, "ssh-ed25519 ")
		assert.Contains(t, out.String(), "Copied public key")
	})

	t.Run("clipboard failure still shows the key", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, runKeygen(context.Background(), env.app, &bytes.Buffer{}, "", false, false))
		env.clip.err = errors.New("no display")

		var out bytes.Buffer
		err := runCopy(env.app, &out, false)
		require.Error(t, err)
		assert.Contains(t, out.String(), "ssh-ed25519 ")
	})
}
