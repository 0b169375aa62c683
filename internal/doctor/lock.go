package doctor

import (
	"context"

	"github.com/teaxyz/teabase/internal/lock"
)

// LockInspector reports who holds the operation lock.
type LockInspector interface {
	Current() *lock.LockInfo
}

// LockCheck warns when the operation lock is held. A lock left behind by a
// crashed process blocks every other teabase command until it goes stale.
type LockCheck struct {
	Locker LockInspector
}

func (c *LockCheck) Name() string     { return "lock" }
func (c *LockCheck) Category() string { return CategoryLock }

func (c *LockCheck) Run(ctx context.Context) CheckResult {
	info := c.Locker.Current()
	if info == nil {
		return result(c, StatusPass, "No operation in progress", "")
	}
	return result(c, StatusWarn, "Lock held by "+info.String(), "If no teabase is running, clear it with 'teabase unlock'")
}

func (c *LockCheck) Fix(ctx context.Context) error { return nil }
