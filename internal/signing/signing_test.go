package signing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaxyz/teabase/internal/config"
	"github.com/teaxyz/teabase/internal/errors"
	exectest "github.com/teaxyz/teabase/internal/exec/testing"
	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/logger"
	signingtest "github.com/teaxyz/teabase/internal/signing/testing"
)

const gpgListing = `sec:u:255:22:ABCDEF0123456789:1700000000:::u:::scESC:::+:::ed25519:::0:
fpr:::::::::0123456789ABCDEF0123456789ABCDEF01234567:
grp:::::::::FFFF:
uid:u::::1700000000::HASH::Dev Person <dev@example.com>::::::::::0:
ssb:u:255:18:1111222233334444:1700000000::::::e:::+:::cv25519::
fpr:::::::::99998888777766665555444433332222BBBBAAAA:
`

func generateKey(t *testing.T, passphrase string) keystore.KeyPair {
	t.Helper()
	s := keystore.New(keystore.Options{HomeDir: t.TempDir(), Comment: "t@t"}, nil, logger.Noop())
	pair, err := s.Generate(context.Background(), keystore.GenerateOptions{Passphrase: passphrase})
	require.NoError(t, err)
	return pair
}

func newConfigurator(store Store, opts Options) (*Configurator, *exectest.FakeRunner) {
	runner := exectest.NewFakeRunner().OnStdout("gpg --list-secret-keys", gpgListing)
	return New(store, runner, opts, logger.NewBufferLogger()), runner
}

func TestApply_SSH(t *testing.T) {
	tests := []struct {
		name     string
		signTags bool
		want     map[string]string
	}{
		{
			name: "commits only",
			want: map[string]string{KeyFormat: "ssh", KeyCommitSign: "true"},
		},
		{
			name:     "commits and tags",
			signTags: true,
			want:     map[string]string{KeyFormat: "ssh", KeyCommitSign: "true", KeyTagSign: "true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := generateKey(t, "")
			store := signingtest.NewMemoryStore(nil)
			c, _ := newConfigurator(store, Options{SignTags: tt.signTags})

			require.NoError(t, c.Apply(context.Background(), Preference{Mode: SSH, Key: &pair}))

			tt.want[KeySigningKey] = pair.PublicPath
			assert.Equal(t, tt.want, store.Values())
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	pair := generateKey(t, "")
	store := signingtest.NewMemoryStore(nil)
	c, _ := newConfigurator(store, Options{SignTags: true})
	pref := Preference{Mode: SSH, Key: &pair}

	require.NoError(t, c.Apply(context.Background(), pref))
	first := store.Values()
	writes := store.Writes()

	require.NoError(t, c.Apply(context.Background(), pref))
	assert.Equal(t, first, store.Values())
	assert.Equal(t, writes, store.Writes(), "second apply should not write")
}

func TestApply_SSHMissingKey(t *testing.T) {
	pair := generateKey(t, "")
	require.NoError(t, os.Remove(pair.PrivatePath))

	store := signingtest.NewMemoryStore(nil)
	c, _ := newConfigurator(store, Options{})

	err := c.Apply(context.Background(), Preference{Mode: SSH, Key: &pair})
	assert.True(t, errors.IsCode(err, errors.ErrKeyUnavailable))
	assert.Empty(t, store.Values())

	err = c.Apply(context.Background(), Preference{Mode: SSH})
	assert.True(t, errors.IsCode(err, errors.ErrKeyUnavailable))
}

func TestApply_ProtectedKeyNeedsVerification(t *testing.T) {
	pair := generateKey(t, "long passphrase")
	store := signingtest.NewMemoryStore(nil)
	c, _ := newConfigurator(store, Options{})

	err := c.Apply(context.Background(), Preference{Mode: SSH, Key: &pair})
	assert.True(t, errors.IsCode(err, errors.ErrUnverified))
	assert.Empty(t, store.Values())

	require.NoError(t, c.Apply(context.Background(), Preference{Mode: SSH, Key: &pair, Verified: true}))
	assert.Equal(t, "ssh", store.Values()[KeyFormat])
}

func TestApply_WriteFailure(t *testing.T) {
	pair := generateKey(t, "")
	store := signingtest.NewMemoryStore(nil)
	store.FailSet = fmt.Errorf("read-only file system")
	c, _ := newConfigurator(store, Options{})

	err := c.Apply(context.Background(), Preference{Mode: SSH, Key: &pair})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfigWrite))
	assert.Contains(t, err.Error(), "read-only file system")
}

func TestApply_NoneUnsetsOnlyOwnedKeys(t *testing.T) {
	pair := generateKey(t, "")
	store := signingtest.NewMemoryStore(map[string]string{
		"user.name":  "Dev Person",
		"user.email": "dev@example.com",
	})
	c, _ := newConfigurator(store, Options{SignTags: true})

	require.NoError(t, c.Apply(context.Background(), Preference{Mode: SSH, Key: &pair}))
	require.NoError(t, c.Apply(context.Background(), Preference{Mode: None}))

	assert.Equal(t, map[string]string{
		"user.name":  "Dev Person",
		"user.email": "dev@example.com",
	}, store.Values())

	assert.True(t, keystore.StillExists(pair), "disabling must not touch key files")

	// Disabling twice is fine
	require.NoError(t, c.Apply(context.Background(), Preference{Mode: None}))
}

func TestApply_GPG(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr string
	}{
		{name: "long key id", id: "ABCDEF0123456789"},
		{name: "lowercase with 0x", id: "0xabcdef0123456789"},
		{name: "full fingerprint", id: "0123456789ABCDEF0123456789ABCDEF01234567"},
		{name: "unknown key", id: "DEADBEEFDEADBEEF", wantErr: errors.ErrKeyUnavailable},
		{name: "empty", id: "", wantErr: errors.ErrKeyUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := signingtest.NewMemoryStore(nil)
			c, _ := newConfigurator(store, Options{})

			err := c.Apply(context.Background(), Preference{Mode: GPG, GPGKeyID: tt.id})
			if tt.wantErr != "" {
				assert.True(t, errors.IsCode(err, tt.wantErr))
				assert.Empty(t, store.Values())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "openpgp", store.Values()[KeyFormat])
			assert.Equal(t, tt.id, store.Values()[KeySigningKey])
			assert.Equal(t, "true", store.Values()[KeyCommitSign])
		})
	}
}

func TestApply_ClearsStaleTagSign(t *testing.T) {
	pair := generateKey(t, "")
	tests := []struct {
		name string
		pref Preference
	}{
		{name: "ssh", pref: Preference{Mode: SSH, Key: &pair}},
		{name: "gpg", pref: Preference{Mode: GPG, GPGKeyID: "ABCDEF0123456789"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := signingtest.NewMemoryStore(map[string]string{KeyTagSign: "true"})
			c, _ := newConfigurator(store, Options{SignTags: false})

			require.NoError(t, c.Apply(context.Background(), tt.pref))

			_, ok := store.Values()[KeyTagSign]
			assert.False(t, ok, "tag.gpgsign should be removed when tag signing is off")
			assert.Equal(t, "true", store.Values()[KeyCommitSign])
		})
	}
}

func TestGPGKeys(t *testing.T) {
	c, runner := newConfigurator(signingtest.NewMemoryStore(nil), Options{})

	keys, err := c.GPGKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "ABCDEF0123456789", keys[0].ID)
	assert.Equal(t, "0123456789ABCDEF0123456789ABCDEF01234567", keys[0].Fingerprint)
	assert.Equal(t, "Dev Person <dev@example.com>", keys[0].UID)
	assert.Equal(t, 1, runner.CallCount("gpg --list-secret-keys --with-colons"))
}

func TestGPGKeys_GPGFails(t *testing.T) {
	runner := exectest.NewFakeRunner().OnExit("gpg", 2, "gpg: keyblock resource: No such file")
	c := New(signingtest.NewMemoryStore(nil), runner, Options{}, logger.Noop())

	_, err := c.GPGKeys(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrKeyUnavailable))
}

func TestCurrent(t *testing.T) {
	pair := generateKey(t, "")
	store := signingtest.NewMemoryStore(nil)
	c, _ := newConfigurator(store, Options{})
	ctx := context.Background()

	pref, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, None, pref.Mode)

	require.NoError(t, c.Apply(ctx, Preference{Mode: SSH, Key: &pair}))
	pref, err = c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, SSH, pref.Mode)
	require.NotNil(t, pref.Key)
	assert.Equal(t, pair.PublicPath, pref.Key.PublicPath)
	assert.Equal(t, pair.PrivatePath, pref.Key.PrivatePath)

	require.NoError(t, c.Apply(ctx, Preference{Mode: GPG, GPGKeyID: "ABCDEF0123456789"}))
	pref, err = c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, GPG, pref.Mode)
	assert.Equal(t, "ABCDEF0123456789", pref.GPGKeyID)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "ssh", SSH.String())
	assert.Equal(t, "gpg", GPG.String())
}

func TestGitStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get set value", func(t *testing.T) {
		runner := exectest.NewFakeRunner().OnStdout("git config --global --get gpg.format", "ssh\n")
		v, ok, err := NewGitStore(runner).Get(ctx, "gpg.format")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "ssh", v)
	})

	t.Run("get unset value", func(t *testing.T) {
		runner := exectest.NewFakeRunner().OnExit("git config --global --get", 1, "")
		_, ok, err := NewGitStore(runner).Get(ctx, "gpg.format")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set", func(t *testing.T) {
		runner := exectest.NewFakeRunner()
		require.NoError(t, NewGitStore(runner).Set(ctx, "commit.gpgsign", "true"))
		assert.Equal(t, 1, runner.CallCount("git config --global commit.gpgsign true"))
	})

	t.Run("set failure", func(t *testing.T) {
		runner := exectest.NewFakeRunner().OnExit("git config", 255, "error: could not lock config file")
		err := NewGitStore(runner).Set(ctx, "commit.gpgsign", "true")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfigWrite))
	})

	t.Run("unset missing key", func(t *testing.T) {
		runner := exectest.NewFakeRunner().OnExit("git config --global --unset", 5, "")
		assert.NoError(t, NewGitStore(runner).Unset(ctx, "tag.gpgsign"))
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "signing.yaml")

	s := NewFileStore(path)
	_, ok, err := s.Get(ctx, KeyFormat)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyFormat, "ssh"))
	require.NoError(t, s.Set(ctx, KeyCommitSign, "true"))

	// A second instance sees the persisted values
	reopened := NewFileStore(path)
	v, ok, err := reopened.Get(ctx, KeyCommitSign)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, reopened.Unset(ctx, KeyFormat))
	require.NoError(t, reopened.Unset(ctx, KeyFormat))
	_, ok, err = s.Get(ctx, KeyFormat)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(config.SigningConfig{Store: "git"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GitStore{}, s)

	s, err = NewStore(config.SigningConfig{Store: "file", File: "/tmp/x.yaml"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = NewStore(config.SigningConfig{Store: "etcd"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
