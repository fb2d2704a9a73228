package password

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type memoryHistory struct {
	rows      map[string][]string
	err       error
	lastLimit int
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{rows: make(map[string][]string)}
}

func (m *memoryHistory) RecentHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := m.rows[userID]
	out := make([]string, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (m *memoryHistory) Append(ctx context.Context, userID, hash string) error {
	if m.err != nil {
		return m.err
	}
	m.rows[userID] = append(m.rows[userID], hash)
	return nil
}

type blockingHistory struct{}

func (blockingHistory) RecentHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingHistory) Append(ctx context.Context, userID, hash string) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestEngine(policy Policy, store HistoryStore) *Engine {
	return NewEngine(policy, store, Options{Cost: bcrypt.MinCost})
}

func TestValidatePolicyRuleOrder(t *testing.T) {
	engine := newTestEngine(DefaultPolicy(), nil)

	cases := []struct {
		name      string
		candidate string
		reason    string
	}{
		{"empty", "", "Password is required"},
		{"short beats everything", "ab", "Password must be at least 8 characters long"},
		{"missing upper before special", "abc12345", "Password must contain at least one uppercase letter"},
		{"missing lower", "ABC12345!", "Password must contain at least one lowercase letter"},
		{"missing digit", "Abcdefgh!", "Password must contain at least one number"},
		{"missing special", "Abcdefg1", "Password must contain at least one special character"},
		{"too many bytes", "Aa1!" + strings.Repeat("é", 35), "Password must be at most 72 bytes long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := engine.ValidatePolicy(tc.candidate)
			require.False(t, ok)
			require.Equal(t, tc.reason, reason)
		})
	}

	ok, reason := engine.ValidatePolicy("Abcdef1!")
	require.True(t, ok)
	require.Empty(t, reason)
}

func TestValidatePolicyCountsRunes(t *testing.T) {
	policy := DefaultPolicy()
	policy.RequireSpecial = false
	engine := newTestEngine(policy, nil)

	ok, _ := engine.ValidatePolicy("Äöü1äöüx")
	require.True(t, ok)

	ok, reason := engine.ValidatePolicy("Äöü1äö")
	require.False(t, ok)
	require.Equal(t, "Password must be at least 8 characters long", reason)
}

func TestValidatePolicyDisabledRules(t *testing.T) {
	engine := newTestEngine(Policy{MinLength: 4}, nil)
	ok, _ := engine.ValidatePolicy("aaaa")
	require.True(t, ok)

	err := engine.Validate("aaa")
	var violation *shared.PolicyViolationError
	require.ErrorAs(t, err, &violation)
	require.Equal(t, "Password must be at least 4 characters long", violation.Reason)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	require.Error(t, Policy{}.Validate())
	require.Error(t, Policy{MinLength: 80}.Validate())
	require.Error(t, Policy{MinLength: 8, MaxFailedAttempts: 3}.Validate())
	require.Error(t, Policy{MinLength: 8, HistoryCount: -1}.Validate())
}

func TestHashAndVerify(t *testing.T) {
	engine := newTestEngine(DefaultPolicy(), nil)

	hash, err := engine.HashPassword("Secret#42")
	require.NoError(t, err)
	require.NotEqual(t, "Secret#42", hash)
	require.True(t, engine.VerifyPassword("Secret#42", hash))
	require.False(t, engine.VerifyPassword("Secret#43", hash))
	require.False(t, engine.VerifyPassword("secret#42", hash))

	other, err := engine.HashPassword("Secret#42")
	require.NoError(t, err)
	require.NotEqual(t, hash, other, "salt must differ per hash")
}

func TestVerifyTreatsMalformedHashAsMismatch(t *testing.T) {
	engine := newTestEngine(DefaultPolicy(), nil)
	require.False(t, engine.VerifyPassword("anything", ""))
	require.False(t, engine.VerifyPassword("anything", "not-a-bcrypt-hash"))
	require.False(t, engine.VerifyPassword("anything", "$2a$12$short"))
}

func TestDefaultCostIsTwelve(t *testing.T) {
	engine := NewEngine(DefaultPolicy(), nil, Options{})
	hash, err := engine.HashPassword("Secret#42")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, 12, cost)
}

func TestIsExpiredBoundary(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := expiry
	engine := NewEngine(DefaultPolicy(), nil, Options{Cost: bcrypt.MinCost, Clock: func() time.Time { return now }})

	require.False(t, engine.IsExpired(Credentials{}))
	require.False(t, engine.IsExpired(Credentials{ExpiresAt: &expiry}))

	now = expiry.Add(time.Nanosecond)
	require.True(t, engine.IsExpired(Credentials{ExpiresAt: &expiry}))

	now = expiry.Add(-time.Hour)
	require.False(t, engine.IsExpired(Credentials{ExpiresAt: &expiry}))
}

func TestExpiryFrom(t *testing.T) {
	changed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	engine := newTestEngine(DefaultPolicy(), nil)
	expiry := engine.ExpiryFrom(changed)
	require.NotNil(t, expiry)
	require.Equal(t, changed.AddDate(0, 0, 90), *expiry)

	policy := DefaultPolicy()
	policy.ExpirationDays = 0
	require.Nil(t, newTestEngine(policy, nil).ExpiryFrom(changed))
}

func TestCheckHistoryWindow(t *testing.T) {
	store := newMemoryHistory()
	policy := DefaultPolicy()
	policy.HistoryCount = 3
	engine := newTestEngine(policy, store)
	ctx := context.Background()

	for _, pw := range []string{"Oldest#0", "First#1", "Second#2", "Third#3"} {
		hash, err := engine.HashPassword(pw)
		require.NoError(t, err)
		require.NoError(t, engine.AddHistory(ctx, "JSMITH", hash))
	}

	ok, err := engine.CheckHistory(ctx, "JSMITH", "Second#2")
	require.NoError(t, err)
	require.False(t, ok, "recent password must be rejected")
	require.Equal(t, 3, store.lastLimit)

	ok, err = engine.CheckHistory(ctx, "JSMITH", "Oldest#0")
	require.NoError(t, err)
	require.True(t, ok, "password outside the window is accepted")

	ok, err = engine.CheckHistory(ctx, "OTHER", "Second#2")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckHistoryFailsClosed(t *testing.T) {
	store := newMemoryHistory()
	store.err = errors.New("connection refused")
	engine := newTestEngine(DefaultPolicy(), store)

	ok, err := engine.CheckHistory(context.Background(), "JSMITH", "Secret#42")
	require.False(t, ok)
	require.ErrorIs(t, err, shared.ErrInfrastructure)
}

func TestCheckHistoryTimesOut(t *testing.T) {
	engine := NewEngine(DefaultPolicy(), blockingHistory{}, Options{Cost: bcrypt.MinCost, StoreTimeout: 20 * time.Millisecond})

	ok, err := engine.CheckHistory(context.Background(), "JSMITH", "Secret#42")
	require.False(t, ok)
	require.ErrorIs(t, err, shared.ErrInfrastructure)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = engine.AddHistory(context.Background(), "JSMITH", "$2a$04$hash")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCheckHistoryDisabled(t *testing.T) {
	policy := DefaultPolicy()
	policy.HistoryCount = 0
	engine := newTestEngine(policy, nil)
	ok, err := engine.CheckHistory(context.Background(), "JSMITH", "anything")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWithHistoryRebindsStore(t *testing.T) {
	base := newMemoryHistory()
	scoped := newMemoryHistory()
	engine := newTestEngine(DefaultPolicy(), base)

	require.NoError(t, engine.WithHistory(scoped).AddHistory(context.Background(), "A", "$2a$04$x"))
	require.Empty(t, base.rows["A"])
	require.Len(t, scoped.rows["A"], 1)
}

func TestLockout(t *testing.T) {
	now := time.Date(2026, 5, 5, 10, 0, 0, 0, time.UTC)
	engine := NewEngine(DefaultPolicy(), nil, Options{Cost: bcrypt.MinCost, Clock: func() time.Time { return now }})

	require.Nil(t, engine.LockoutAfter(4))
	until := engine.LockoutAfter(5)
	require.NotNil(t, until)
	require.Equal(t, now.Add(15*time.Minute), *until)

	require.Equal(t, 15*time.Minute, engine.LockRemaining(Credentials{LockedUntil: until}))
	require.Zero(t, engine.LockRemaining(Credentials{}))

	past := now.Add(-time.Second)
	require.Zero(t, engine.LockRemaining(Credentials{LockedUntil: &past}))
}

func TestLockoutDisabled(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxFailedAttempts = 0
	engine := newTestEngine(policy, nil)
	require.Nil(t, engine.LockoutAfter(100))
}
