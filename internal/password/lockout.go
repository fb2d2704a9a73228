package password

import "time"

// LockRemaining returns how long the credentials stay locked, or zero when
// they are not locked. An elapsed lock is reported as unlocked.
func (e *Engine) LockRemaining(c Credentials) time.Duration {
	if c.LockedUntil == nil {
		return 0
	}
	remaining := c.LockedUntil.Sub(e.clock())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// LockoutAfter returns the lock deadline to store after a failed attempt
// brought the counter to attempts, or nil when the threshold is not reached
// or lockout is disabled.
func (e *Engine) LockoutAfter(attempts int) *time.Time {
	if e.policy.MaxFailedAttempts <= 0 || attempts < e.policy.MaxFailedAttempts {
		return nil
	}
	until := e.clock().Add(e.policy.LockoutDuration())
	return &until
}
