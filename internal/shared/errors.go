package shared

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique constraint was hit.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCurrentPasswordIncorrect is returned when a password change presents the wrong current password.
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	// ErrAuthenticationRequired indicates the request carries no valid identity.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInsufficientPermission indicates the identity lacks a required permission.
	ErrInsufficientPermission = errors.New("forbidden")
	// ErrInfrastructure marks credential store failures (unreachable, timeout).
	ErrInfrastructure = errors.New("credential store unavailable")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
)

// PolicyViolationError reports the first password rule a candidate failed.
type PolicyViolationError struct {
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return e.Reason
}

// NewPolicyViolation wraps a human readable rule failure.
func NewPolicyViolation(reason string) error {
	return &PolicyViolationError{Reason: reason}
}

// AccountLockedError carries the remaining lockout duration. The failed
// attempt count is intentionally not part of it.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is locked, try again in %d minutes", e.RemainingMinutes())
}

// RemainingMinutes rounds the remaining lockout up to whole minutes.
func (e *AccountLockedError) RemainingMinutes() int {
	if e == nil || e.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(e.Remaining.Minutes()))
}

// UserSafeMessage returns a message that can be shown to API clients.
func UserSafeMessage(err error) string {
	var policy *PolicyViolationError
	var locked *AccountLockedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &policy):
		return policy.Reason
	case errors.As(err, &locked):
		return locked.Error()
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrDuplicate):
		return "resource already exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, ErrCurrentPasswordIncorrect):
		return "current password is incorrect"
	case errors.Is(err, ErrAuthenticationRequired):
		return "authentication required"
	case errors.Is(err, ErrInsufficientPermission):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "internal error"
	}
}
