package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaxyz/teabase/internal/exec"
)

func TestFakeRunner_Defaults(t *testing.T) {
	f := NewFakeRunner()
	res, err := f.Run(context.Background(), exec.Command{Name: "git", Args: []string{"status"}})

	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 1, f.CallCount("git"))
}

func TestFakeRunner_LastRuleWins(t *testing.T) {
	f := NewFakeRunner().
		OnStdout("gpg", "first").
		OnStdout("gpg --list", "second")

	res, err := f.Run(context.Background(), exec.Command{Name: "gpg", Args: []string{"--list-secret-keys"}})
	require.NoError(t, err)
	assert.Equal(t, "second", string(res.Stdout))

	res, err = f.Run(context.Background(), exec.Command{Name: "gpg", Args: []string{"--version"}})
	require.NoError(t, err)
	assert.Equal(t, "first", string(res.Stdout))
}

func TestFakeRunner_ExitAndError(t *testing.T) {
	boom := errors.New("boom")
	f := NewFakeRunner().
		OnExit("brew", 3, "nope").
		On("curl", Response{Err: boom})

	res, err := f.Run(context.Background(), exec.Command{Name: "brew", Args: []string{"install", "pkgx"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)

	_, err = f.Run(context.Background(), exec.Command{Name: "curl"})
	assert.ErrorIs(t, err, boom)
}

func TestFakeRunner_Do(t *testing.T) {
	var seen string
	f := NewFakeRunner().On("ssh-keygen", Response{Do: func(c exec.Command) { seen = c.Args[0] }})

	_, err := f.Run(context.Background(), exec.Command{Name: "ssh-keygen", Args: []string{"-t", "ed25519"}})
	require.NoError(t, err)
	assert.Equal(t, "-t", seen)

	f.Reset()
	assert.Empty(t, f.Calls())
}

func TestFakeRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFakeRunner().Run(ctx, exec.Command{Name: "sleep"})
	assert.ErrorIs(t, err, context.Canceled)
}
