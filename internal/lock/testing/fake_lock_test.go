package testing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/lock"
)

var _ lock.Locker = (*FakeLocker)(nil)

func TestFakeLocker_AcquireRelease(t *testing.T) {
	f := NewFakeLocker()

	h, err := f.TryAcquire("ssh enable")
	require.NoError(t, err)
	assert.True(t, f.Held())

	_, err = f.TryAcquire("gpg enable")
	assert.ErrorIs(t, err, lock.ErrLocked)
	assert.True(t, errors.IsCode(err, errors.ErrBusy))

	require.NoError(t, h.Release())
	require.NoError(t, h.Release())
	assert.False(t, f.Held())
	assert.Equal(t, 1, f.Releases())
	assert.True(t, h.(*FakeLock).Released())

	assert.Equal(t, []string{"ssh enable", "gpg enable"}, f.Acquires())
}

func TestFakeLocker_Contention(t *testing.T) {
	f := NewFakeLocker().SetContention("dev@other (pid 9)")

	_, err := f.TryAcquire("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dev@other")
}

func TestFakeLocker_Fail(t *testing.T) {
	boom := fmt.Errorf("disk gone")
	f := NewFakeLocker().SetFail(boom)

	_, err := f.TryAcquire("x")
	assert.ErrorIs(t, err, boom)
}
