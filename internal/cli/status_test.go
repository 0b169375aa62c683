package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaxyz/teabase/internal/keystore"
	"github.com/teaxyz/teabase/internal/pane"
	"github.com/teaxyz/teabase/internal/signing"
	"github.com/teaxyz/teabase/internal/tools"
)

func TestBuildStatus(t *testing.T) {
	key := &keystore.KeyPair{
		PrivatePath:   "/home/me/.ssh/id_ed25519",
		PublicPath:    "/home/me/.ssh/id_ed25519.pub",
		Algorithm:     keystore.Ed25519,
		HasPassphrase: true,
		Fingerprint:   "SHA256:abc",
	}

	tests := []struct {
		name    string
		snap    pane.Snapshot
		mode    string
		signKey string
	}{
		{
			name: "nothing set up",
			snap: pane.Snapshot{},
			mode: "none",
		},
		{
			name:    "ssh signing",
			snap:    pane.Snapshot{KeyPresent: true, Key: key, Signing: signing.Preference{Mode: signing.SSH, Key: key}},
			mode:    "ssh",
			signKey: key.PublicPath,
		},
		{
			name:    "gpg signing",
			snap:    pane.Snapshot{Signing: signing.Preference{Mode: signing.GPG, GPGKeyID: "3AA5C34371567BD2"}},
			mode:    "gpg",
			signKey: "3AA5C34371567BD2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := buildStatus(tt.snap, "")
			assert.Equal(t, tt.mode, r.Signing.Mode)
			assert.Equal(t, tt.signKey, r.Signing.Key)
			if tt.snap.Key != nil {
				require.NotNil(t, r.Key)
				assert.True(t, r.Key.Protected)
				assert.Equal(t, "ed25519", r.Key.Algorithm)
			} else {
				assert.Nil(t, r.Key)
			}
		})
	}
}

func TestRenderStatus(t *testing.T) {
	resetGlobals(t)
	r := buildStatus(pane.Snapshot{
		Tools: []tools.State{
			{Tool: tools.Homebrew, Name: "Homebrew", Installed: true, Path: "/opt/homebrew/bin/brew"},
			{Tool: tools.PkgX, Name: "pkgx"},
		},
	}, "me@box (pid 42) running 'ssh enable'")

	var out bytes.Buffer
	renderStatus(&out, r)
	s := out.String()

	assert.Contains(t, s, "SSH key")
	assert.Contains(t, s, "teabase ssh keygen")
	assert.Contains(t, s, "Commit signing")
	assert.Contains(t, s, "off")
	assert.Contains(t, s, "/opt/homebrew/bin/brew")
	assert.Contains(t, s, "not installed")
	assert.Contains(t, s, "Busy: me@box")
}

func TestRunStatus_JSON(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.True(t, env.app.Pane.BootstrapSSHSigning(ctx, false).OK())

	machineMode = true
	var out bytes.Buffer
	require.NoError(t, runStatus(ctx, env.app, &out))

	var got struct {
		Success bool         `json:"success"`
		Data    statusReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Success)
	require.NotNil(t, got.Data.Key)
	assert.Equal(t, env.keyPath(), got.Data.Key.Path)
	assert.False(t, got.Data.Key.Protected)
	assert.Equal(t, "ssh", got.Data.Signing.Mode)
	assert.Empty(t, got.Data.Lock, "lock is released after the operation")
	assert.Len(t, got.Data.Tools, 2)
}
