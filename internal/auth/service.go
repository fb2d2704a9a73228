package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/access"
	"github.com/odyssey-erp/odyssey-wms/internal/observability"
	"github.com/odyssey-erp/odyssey-wms/internal/password"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Login outcomes reported to metrics.
const (
	outcomeSuccess = "success"
	outcomeInvalid = "invalid"
	outcomeLocked  = "locked"
	outcomeError   = "error"
)

const auditEntity = "user"

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	engine  *password.Engine
	loader  *access.Loader
	audit   shared.AuditRecorder
	logger  *slog.Logger
	metrics *observability.Metrics
}

// ServiceDeps groups the collaborators of Service.
type ServiceDeps struct {
	Repo    Repository
	Engine  *password.Engine
	Loader  *access.Loader
	Audit   shared.AuditRecorder
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewService constructs a new Service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    deps.Repo,
		engine:  deps.Engine,
		loader:  deps.Loader,
		audit:   deps.Audit,
		logger:  logger,
		metrics: deps.Metrics,
	}
}

// Policy exposes the active password policy.
func (s *Service) Policy() password.Policy {
	return s.engine.Policy()
}

// Login checks the lockout state and the password of the account. Failures
// bump the counter and lock the account once the threshold is reached.
func (s *Service) Login(ctx context.Context, username, plaintext string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	user, err := s.repo.FindByID(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.engine.DummyVerify(plaintext)
			s.metrics.LoginAttempt(outcomeInvalid)
			return nil, shared.ErrInvalidCredentials
		}
		s.metrics.LoginAttempt(outcomeError)
		return nil, err
	}
	if !user.Active() {
		s.engine.DummyVerify(plaintext)
		s.metrics.LoginAttempt(outcomeInvalid)
		return nil, shared.ErrInvalidCredentials
	}

	if remaining := s.engine.LockRemaining(user.Credentials); remaining > 0 {
		s.metrics.LoginAttempt(outcomeLocked)
		s.record(ctx, user.ID, shared.AuditLoginLocked)
		return nil, &shared.AccountLockedError{Remaining: remaining}
	}

	if !s.engine.VerifyPassword(plaintext, user.Credentials.Hash) {
		return nil, s.failLogin(ctx, user)
	}

	now := s.engine.Now()
	if err := s.repo.RecordSuccess(ctx, user.ID, now); err != nil {
		s.metrics.LoginAttempt(outcomeError)
		return nil, fmt.Errorf("auth: record login: %w: %w", shared.ErrInfrastructure, err)
	}
	user.LastLoginAt = &now
	user.Credentials.FailedAttempts = 0
	user.Credentials.LockedUntil = nil

	s.metrics.LoginAttempt(outcomeSuccess)
	s.record(ctx, user.ID, shared.AuditLoginSuccess)
	return &LoginResult{
		User:       user,
		Access:     s.loader.Load(ctx, user.ID),
		MustChange: user.Credentials.MustChange,
		Expired:    s.engine.IsExpired(user.Credentials),
	}, nil
}

func (s *Service) failLogin(ctx context.Context, user *User) error {
	now := s.engine.Now()
	until, err := s.countFailure(ctx, user.ID, now)
	if err != nil {
		s.metrics.LoginAttempt(outcomeError)
		return err
	}
	if until == nil {
		s.metrics.LoginAttempt(outcomeInvalid)
		s.record(ctx, user.ID, shared.AuditLoginFail)
		return shared.ErrInvalidCredentials
	}
	s.metrics.LoginAttempt(outcomeLocked)
	s.record(ctx, user.ID, shared.AuditLoginLocked)
	return &shared.AccountLockedError{Remaining: until.Sub(now)}
}

// countFailure bumps the failure counter and locks the account once the
// threshold is reached. It returns the lock expiry, or nil while unlocked.
func (s *Service) countFailure(ctx context.Context, userID string, now time.Time) (*time.Time, error) {
	attempts, err := s.repo.IncrementFailures(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("auth: count failure: %w: %w", shared.ErrInfrastructure, err)
	}
	until := s.engine.LockoutAfter(attempts)
	if until == nil {
		return nil, nil
	}
	if err := s.repo.Lock(ctx, userID, *until); err != nil {
		return nil, fmt.Errorf("auth: lock account: %w: %w", shared.ErrInfrastructure, err)
	}
	s.logger.Warn("account locked", slog.String("user_id", userID), slog.Time("until", *until))
	return until, nil
}

// ChangePassword replaces the caller's own password after verifying the
// current one. The new password must pass the policy and the history window.
// A wrong current password counts toward the same lockout as a failed login.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrAuthenticationRequired
		}
		return err
	}
	if remaining := s.engine.LockRemaining(user.Credentials); remaining > 0 {
		return &shared.AccountLockedError{Remaining: remaining}
	}
	if !s.engine.VerifyPassword(current, user.Credentials.Hash) {
		now := s.engine.Now()
		until, err := s.countFailure(ctx, user.ID, now)
		if err != nil {
			return err
		}
		if until != nil {
			s.record(ctx, user.ID, shared.AuditLoginLocked)
			return &shared.AccountLockedError{Remaining: until.Sub(now)}
		}
		return shared.ErrCurrentPasswordIncorrect
	}
	if err := s.engine.Validate(next); err != nil {
		return err
	}
	if err := s.storePassword(ctx, user.ID, next, false, true); err != nil {
		return err
	}
	s.record(ctx, user.ID, shared.AuditChangePassword)
	return nil
}

// ResetPassword sets another user's password on behalf of an administrator.
// The user has to change it on next login.
func (s *Service) ResetPassword(ctx context.Context, actorID, userID, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.engine.Validate(next); err != nil {
		return err
	}
	if err := s.storePassword(ctx, user.ID, next, true, false); err != nil {
		return err
	}
	shared.RecordQuietly(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   shared.AuditResetPassword,
		Entity:   auditEntity,
		EntityID: user.ID,
	})
	return nil
}

// storePassword hashes outside the transaction, then updates the user row and
// appends the history row atomically.
func (s *Service) storePassword(ctx context.Context, userID, plaintext string, mustChange, checkHistory bool) error {
	hash, err := s.engine.HashPassword(plaintext)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		engine := s.engine.WithHistory(tx.History())
		if checkHistory {
			ok, err := engine.CheckHistory(ctx, userID, plaintext)
			if err != nil {
				return err
			}
			if !ok {
				return shared.NewPolicyViolation(engine.Policy().HistoryRejection())
			}
		}
		now := engine.Now()
		if err := tx.UpdatePassword(ctx, userID, PasswordUpdate{
			Hash:       hash,
			ChangedAt:  now,
			ExpiresAt:  engine.ExpiryFrom(now),
			MustChange: mustChange,
		}); err != nil {
			return err
		}
		return engine.AddHistory(ctx, userID, hash)
	})
}

func (s *Service) record(ctx context.Context, userID, action string) {
	shared.RecordQuietly(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  userID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: userID,
	})
}
