// Package testing provides test doubles for the lock package.
package testing

import (
	"sync"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/lock"
)

// FakeLock is a handle returned by FakeLocker.
type FakeLock struct {
	Command  string
	released bool
	owner    *FakeLocker
}

// Release frees the fake lock.
func (l *FakeLock) Release() error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	l.owner.held = nil
	l.owner.releases++
	return nil
}

// Released reports whether Release was called.
func (l *FakeLock) Released() bool {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	return l.released
}

// FakeLocker is an in-process lock.Locker for tests.
type FakeLocker struct {
	mu sync.Mutex

	held     *FakeLock
	heldBy   string
	failWith error

	acquires []string
	releases int
}

// NewFakeLocker creates a locker that is free by default.
func NewFakeLocker() *FakeLocker {
	return &FakeLocker{}
}

// SetContention makes the lock appear held by another process.
func (f *FakeLocker) SetContention(holder string) *FakeLocker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heldBy = holder
	return f
}

// SetFail makes TryAcquire return err.
func (f *FakeLocker) SetFail(err error) *FakeLocker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
	return f
}

// TryAcquire implements lock.Locker.
func (f *FakeLocker) TryAcquire(command string) (lock.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires = append(f.acquires, command)

	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.heldBy != "" || f.held != nil {
		holder := f.heldBy
		if holder == "" {
			holder = "'" + f.held.Command + "'"
		}
		return nil, errors.WrapWithCode(lock.ErrLocked, errors.ErrBusy,
			"Another teabase operation is running",
			"Lock held by "+holder)
	}

	f.held = &FakeLock{Command: command, owner: f}
	return f.held, nil
}

// Acquires returns the command of every TryAcquire call.
func (f *FakeLocker) Acquires() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.acquires))
	copy(out, f.acquires)
	return out
}

// Releases returns how many handles were released.
func (f *FakeLocker) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// Held reports whether a handle is outstanding.
func (f *FakeLocker) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held != nil
}
