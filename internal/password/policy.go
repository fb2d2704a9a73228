// Package password enforces credential strength, storage, expiration, reuse
// and lockout rules.
package password

import (
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxInputBytes is the longest input bcrypt accepts.
const MaxInputBytes = 72

// Policy is the configured credential policy. It is not persisted per user.
type Policy struct {
	MinLength         int  `json:"minimum_length"`
	RequireUppercase  bool `json:"require_uppercase"`
	RequireLowercase  bool `json:"require_lowercase"`
	RequireDigit      bool `json:"require_digit"`
	RequireSpecial    bool `json:"require_special_char"`
	ExpirationDays    int  `json:"expiration_days"`
	HistoryCount      int  `json:"history_count"`
	MaxFailedAttempts int  `json:"max_failed_attempts"`
	LockoutMinutes    int  `json:"lockout_minutes"`
}

// DefaultPolicy returns the stock warehouse policy.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:         8,
		RequireUppercase:  true,
		RequireLowercase:  true,
		RequireDigit:      true,
		RequireSpecial:    true,
		ExpirationDays:    90,
		HistoryCount:      5,
		MaxFailedAttempts: 5,
		LockoutMinutes:    15,
	}
}

// Validate checks the policy itself for nonsensical settings.
func (p Policy) Validate() error {
	switch {
	case p.MinLength < 1:
		return errors.New("password: minimum length must be positive")
	case p.MinLength > MaxInputBytes:
		return fmt.Errorf("password: minimum length cannot exceed %d", MaxInputBytes)
	case p.ExpirationDays < 0, p.HistoryCount < 0, p.MaxFailedAttempts < 0, p.LockoutMinutes < 0:
		return errors.New("password: policy values cannot be negative")
	case p.MaxFailedAttempts > 0 && p.LockoutMinutes == 0:
		return errors.New("password: lockout minutes required when max failed attempts is set")
	}
	return nil
}

// LockoutDuration returns the configured lockout window.
func (p Policy) LockoutDuration() time.Duration {
	return time.Duration(p.LockoutMinutes) * time.Minute
}

// HistoryRejection is the reason reported when a candidate was used recently.
func (p Policy) HistoryRejection() string {
	return fmt.Sprintf("Password cannot be one of your last %d passwords", p.HistoryCount)
}

// check returns the first failing rule, or "" when the candidate passes.
// Order is fixed: presence, length, upper, lower, digit, special, bcrypt limit.
func (p Policy) check(candidate string) string {
	if candidate == "" {
		return "Password is required"
	}
	if utf8.RuneCountInString(candidate) < p.MinLength {
		return fmt.Sprintf("Password must be at least %d characters long", p.MinLength)
	}

	var upper, lower, digit, special bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	if p.RequireUppercase && !upper {
		return "Password must contain at least one uppercase letter"
	}
	if p.RequireLowercase && !lower {
		return "Password must contain at least one lowercase letter"
	}
	if p.RequireDigit && !digit {
		return "Password must contain at least one number"
	}
	if p.RequireSpecial && !special {
		return "Password must contain at least one special character"
	}
	if len(candidate) > MaxInputBytes {
		return fmt.Sprintf("Password must be at most %d bytes long", MaxInputBytes)
	}
	return ""
}
