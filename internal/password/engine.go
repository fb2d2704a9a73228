package password

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Cost is the bcrypt work factor used for new hashes.
const Cost = 12

// Credentials is the persisted credential state of one user.
type Credentials struct {
	Hash           string
	ChangedAt      *time.Time
	ExpiresAt      *time.Time
	MustChange     bool
	FailedAttempts int
	LockedUntil    *time.Time
}

// HistoryStore persists password history rows.
type HistoryStore interface {
	// RecentHashes returns up to limit hashes for the user, newest first.
	RecentHashes(ctx context.Context, userID string, limit int) ([]string, error)
	// Append inserts one history row.
	Append(ctx context.Context, userID, hash string) error
}

// Options tunes an Engine.
type Options struct {
	// StoreTimeout bounds every history store call. Zero disables the bound.
	StoreTimeout time.Duration
	// Cost overrides the bcrypt cost, mainly for tests.
	Cost  int
	Clock func() time.Time
}

// Engine validates, hashes and tracks passwords against a Policy.
type Engine struct {
	policy  Policy
	history HistoryStore
	timeout time.Duration
	cost    int
	clock   func() time.Time

	dummyOnce *sync.Once
	dummyHash *[]byte
}

// NewEngine constructs an Engine. The store may be nil when history is not used.
func NewEngine(policy Policy, history HistoryStore, opts Options) *Engine {
	cost := opts.Cost
	if cost == 0 {
		cost = Cost
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	var dummy []byte
	return &Engine{
		policy:    policy,
		history:   history,
		timeout:   opts.StoreTimeout,
		cost:      cost,
		clock:     clock,
		dummyOnce: &sync.Once{},
		dummyHash: &dummy,
	}
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.clock()
}

// WithHistory returns a copy of the engine bound to another history store,
// typically one scoped to a database transaction.
func (e *Engine) WithHistory(store HistoryStore) *Engine {
	clone := *e
	clone.history = store
	return &clone
}

// ValidatePolicy reports whether the candidate satisfies every enabled rule,
// or the reason of the first rule it fails.
func (e *Engine) ValidatePolicy(candidate string) (bool, string) {
	if reason := e.policy.check(candidate); reason != "" {
		return false, reason
	}
	return true, ""
}

// Validate is ValidatePolicy in error form.
func (e *Engine) Validate(candidate string) error {
	if ok, reason := e.ValidatePolicy(candidate); !ok {
		return shared.NewPolicyViolation(reason)
	}
	return nil
}

// HashPassword returns a salted bcrypt hash of the plaintext.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), e.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. Malformed hashes and
// internal failures count as a mismatch.
func (e *Engine) VerifyPassword(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// DummyVerify spends the same work as a real verification. Login uses it for
// unknown users so response timing does not reveal which usernames exist.
func (e *Engine) DummyVerify(plaintext string) {
	e.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("odyssey-wms-dummy"), e.cost)
		if err == nil {
			*e.dummyHash = hash
		}
	})
	if len(*e.dummyHash) > 0 {
		_ = bcrypt.CompareHashAndPassword(*e.dummyHash, []byte(plaintext))
	}
}

// IsExpired reports whether now is strictly after the expiry timestamp.
// Credentials without an expiry never expire.
func (e *Engine) IsExpired(c Credentials) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return e.clock().After(*c.ExpiresAt)
}

// ExpiryFrom returns the expiry for a password changed at the given instant,
// or nil when expiration is disabled.
func (e *Engine) ExpiryFrom(changed time.Time) *time.Time {
	if e.policy.ExpirationDays <= 0 {
		return nil
	}
	expiry := changed.AddDate(0, 0, e.policy.ExpirationDays)
	return &expiry
}

// CheckHistory reports whether the candidate is acceptable, i.e. it matches
// none of the most recent HistoryCount hashes. Store failures are returned
// rather than treated as acceptance.
func (e *Engine) CheckHistory(ctx context.Context, userID, candidate string) (bool, error) {
	if e.policy.HistoryCount <= 0 {
		return true, nil
	}
	if e.history == nil {
		return false, fmt.Errorf("password: history store not configured: %w", shared.ErrInfrastructure)
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	hashes, err := e.history.RecentHashes(ctx, userID, e.policy.HistoryCount)
	if err != nil {
		return false, storeError("check history", err)
	}
	if len(hashes) > e.policy.HistoryCount {
		hashes = hashes[:e.policy.HistoryCount]
	}
	for _, h := range hashes {
		if e.VerifyPassword(candidate, h) {
			return false, nil
		}
	}
	return true, nil
}

// AddHistory appends one history row. It never deletes.
func (e *Engine) AddHistory(ctx context.Context, userID, hash string) error {
	if hash == "" {
		return errors.New("password: history hash required")
	}
	if e.history == nil {
		return fmt.Errorf("password: history store not configured: %w", shared.ErrInfrastructure)
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()
	if err := e.history.Append(ctx, userID, hash); err != nil {
		return storeError("add history", err)
	}
	return nil
}

func (e *Engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func storeError(op string, err error) error {
	return fmt.Errorf("password: %s: %w: %w", op, shared.ErrInfrastructure, err)
}
