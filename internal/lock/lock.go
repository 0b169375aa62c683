// Package lock serializes teabase operations across processes. Two CLI
// invocations, or the CLI and the pane, never generate keys or rewrite the
// signing config at the same time.
//
// The lock is a directory: mkdir is atomic, so whoever creates it holds the
// lock. An info.json inside records the holder. Locks older than the stale
// threshold are assumed abandoned and removed.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teaxyz/teabase/internal/config"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/logger"
)

const (
	lockName = "teabase.lock"
	infoName = "info.json"
)

// Handle is a held lock.
type Handle interface {
	Release() error
}

// Locker hands out the operation lock.
type Locker interface {
	TryAcquire(command string) (Handle, error)
}

// Lock is an acquired lock directory.
type Lock struct {
	Dir  string
	Info *LockInfo

	once sync.Once
	err  error
}

// Manager acquires locks under a base directory.
type Manager struct {
	dir   string
	stale time.Duration
	log   logger.Logger
}

// NewManager creates a Manager from config. An empty dir means the OS temp dir.
func NewManager(cfg config.LockConfig, log logger.Logger) *Manager {
	dir := cfg.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Manager{dir: dir, stale: cfg.Stale, log: logger.OrDefault(log)}
}

// Dir returns the lock directory path.
func (m *Manager) Dir() string {
	return filepath.Join(m.dir, lockName)
}

// TryAcquire takes the lock without waiting. When someone else holds it the
// error wraps ErrLocked and carries the BUSY code.
func (m *Manager) TryAcquire(command string) (Handle, error) {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to create lock directory: %s", m.dir),
			"Check permissions, or set lock.dir in your config")
	}

	lockDir := m.Dir()
	info := NewLockInfo(command)

	// Two passes: the second runs after removing a stale lock.
	for attempt := 0; attempt < 2; attempt++ {
		err := os.Mkdir(lockDir, 0o700)
		if err == nil {
			if err := writeInfo(lockDir, info); err != nil {
				os.RemoveAll(lockDir)
				return nil, err
			}
			m.log.Debug("acquired lock %s", lockDir)
			return &Lock{Dir: lockDir, Info: info}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrLock,
				fmt.Sprintf("Failed to create lock: %s", lockDir),
				"Check permissions on the lock directory")
		}

		if attempt == 0 && m.isStale(lockDir) {
			m.log.Warn("removing stale lock held by %s", Holder(lockDir))
			if err := os.RemoveAll(lockDir); err != nil {
				break
			}
			continue
		}
		break
	}

	return nil, errors.WrapWithCode(ErrLocked, errors.ErrBusy,
		"Another teabase operation is running",
		fmt.Sprintf("Lock held by %s. Wait for it to finish, or run 'teabase unlock' if it crashed.", Holder(lockDir)))
}

// Release removes the lock if it is still ours. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		data, err := os.ReadFile(filepath.Join(l.Dir, infoName))
		if err == nil {
			if cur, perr := ParseLockInfo(data); perr == nil && cur.ID != l.Info.ID {
				// Someone removed ours as stale and took the lock since.
				return
			}
		}
		if err := os.RemoveAll(l.Dir); err != nil {
			l.err = errors.WrapWithCode(err, errors.ErrLock,
				fmt.Sprintf("Failed to remove lock: %s", l.Dir),
				"Remove it manually or run 'teabase unlock'")
		}
	})
	return l.err
}

// ForceRelease removes the lock regardless of who holds it.
func (m *Manager) ForceRelease() error {
	if err := os.RemoveAll(m.Dir()); err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to remove lock: %s", m.Dir()),
			"Check permissions on the lock directory")
	}
	return nil
}

// Holder describes who holds the lock in lockDir.
func Holder(lockDir string) string {
	data, err := os.ReadFile(filepath.Join(lockDir, infoName))
	if err != nil {
		return "unknown"
	}
	info, err := ParseLockInfo(data)
	if err != nil {
		return "unknown"
	}
	return info.String()
}

// Current returns the holder info, or nil when the lock is free.
func (m *Manager) Current() *LockInfo {
	data, err := os.ReadFile(filepath.Join(m.Dir(), infoName))
	if err != nil {
		return nil
	}
	info, err := ParseLockInfo(data)
	if err != nil {
		return nil
	}
	return info
}

// isStale reports whether the lock is older than the threshold. A lock
// without readable info falls back to the directory's mtime, covering a
// holder that died between mkdir and writing info.json.
func (m *Manager) isStale(lockDir string) bool {
	if m.stale <= 0 {
		return false
	}
	data, err := os.ReadFile(filepath.Join(lockDir, infoName))
	if err == nil {
		if info, err := ParseLockInfo(data); err == nil {
			return info.Age() > m.stale
		}
	}
	st, err := os.Stat(lockDir)
	if err != nil {
		return false
	}
	return time.Since(st.ModTime()) > m.stale
}

func writeInfo(lockDir string, info *LockInfo) error {
	data, err := info.Marshal()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to serialize lock info",
			"This shouldn't happen")
	}
	if err := os.WriteFile(filepath.Join(lockDir, infoName), data, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to write lock info file",
			"Check disk space and permissions")
	}
	return nil
}
