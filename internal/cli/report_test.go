package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaxyz/teabase/internal/bootstrap"
	tberrors "github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/keystore"
)

func TestReport(t *testing.T) {
	failure := tberrors.New(tberrors.ErrKeyExists, "Key already exists", "Pass --force")

	tests := []struct {
		name     string
		outcome  bootstrap.Outcome
		wantOut  string
		wantErr  error
		wantExit int
	}{
		{
			name:    "success",
			outcome: bootstrap.FromError(nil, "Commits will be signed"),
			wantOut: "✓ Commits will be signed",
		},
		{
			name:     "cancelled",
			outcome:  cancelledOutcome(),
			wantOut:  "Cancelled",
			wantExit: exitCancelled,
		},
		{
			name:    "failed",
			outcome: bootstrap.FromError(failure, ""),
			wantErr: failure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobals(t)
			var out bytes.Buffer
			err := report(&out, tt.outcome)

			assert.Contains(t, out.String(), tt.wantOut)
			switch {
			case tt.wantExit != 0:
				code, ok := tberrors.GetExitCode(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantExit, code)
			case tt.wantErr != nil:
				assert.Same(t, tt.wantErr, err)
				assert.Empty(t, out.String(), "failures are printed by the root command")
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestReport_JSON(t *testing.T) {
	resetGlobals(t)
	machineMode = true

	var out bytes.Buffer
	o := bootstrap.FromError(nil, "Generated ed25519 key")
	o.Key = &keystore.KeyPair{PrivatePath: "/k/id_ed25519"}
	require.NoError(t, report(&out, o))

	var env struct {
		Success bool        `json:"success"`
		Data    outcomeJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "success", env.Data.Status)
	assert.Equal(t, "/k/id_ed25519", env.Data.Key)

	out.Reset()
	err := report(&out, cancelledOutcome())
	_, isExit := tberrors.GetExitCode(err)
	assert.True(t, isExit)

	var errEnv JSONEnvelope
	require.NoError(t, json.Unmarshal(out.Bytes(), &errEnv))
	assert.False(t, errEnv.Success)
	require.NotNil(t, errEnv.Error)
	assert.Equal(t, tberrors.ErrCancelled, errEnv.Error.Code)
}

func TestErrorToJSON(t *testing.T) {
	assert.Nil(t, ErrorToJSON(nil))

	install := tberrors.NewInstallFailed("pkgx", 7, "curl failed")
	got := ErrorToJSON(install)
	assert.Equal(t, tberrors.ErrInstall, got.Code)
	assert.Equal(t, "Couldn't install pkgx", got.Message)
	assert.NotContains(t, got.Message, "7")
	assert.Equal(t, map[string]interface{}{"exit_code": 7}, got.Details)

	plain := ErrorToJSON(errors.New("boom"))
	assert.Equal(t, ErrCodeUnknown, plain.Code)
	assert.Equal(t, "boom", plain.Message)
}

func TestWriteJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, map[string]string{"key": "value"}))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.Equal(t, map[string]interface{}{"key": "value"}, env.Data)
}

func TestHandleError(t *testing.T) {
	resetGlobals(t)
	assert.Equal(t, 0, handleError(nil))
	assert.Equal(t, exitCancelled, handleError(tberrors.NewExitError(exitCancelled)))
	assert.Equal(t, 1, handleError(tberrors.New(tberrors.ErrConfig, "bad", "")))
}

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unknown command", err: errors.New(`unknown command "foo" for "teabase"`), want: true},
		{name: "unknown flag", err: errors.New("unknown flag: --foo"), want: true},
		{name: "unknown shorthand", err: errors.New("unknown shorthand flag: 'x' in -x"), want: true},
		{name: "other error", err: errors.New("permission denied"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}
