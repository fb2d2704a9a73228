package auth

import (
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/access"
	"github.com/odyssey-erp/odyssey-wms/internal/password"
)

// Account statuses stored in users.status.
const (
	StatusActive   = "A"
	StatusInactive = "I"
)

// User represents an account as seen by the authentication flows.
type User struct {
	ID          string
	Name        string
	Status      string
	Credentials password.Credentials
	LastLoginAt *time.Time
}

// Active reports whether the account may sign in.
func (u *User) Active() bool {
	return u != nil && u.Status == StatusActive
}

// PasswordUpdate is the credential state written after a change or reset.
type PasswordUpdate struct {
	Hash       string
	ChangedAt  time.Time
	ExpiresAt  *time.Time
	MustChange bool
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User       *User
	Access     access.Context
	MustChange bool
	Expired    bool
}
