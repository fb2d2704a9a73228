package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/password"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	// IncrementFailures bumps the failed-attempt counter atomically and
	// returns the new value. A lock that elapsed before now restarts the count.
	IncrementFailures(ctx context.Context, id string, now time.Time) (int, error)
	Lock(ctx context.Context, id string, until time.Time) error
	RecordSuccess(ctx context.Context, id string, at time.Time) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations used by the password flows.
type TxRepository interface {
	UpdatePassword(ctx context.Context, id string, update PasswordUpdate) error
	History() password.HistoryStore
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectUser = `SELECT id, name, status, password_hash, password_changed_at, password_expires_at,
	must_change_password, failed_attempts, locked_until, last_login_at
FROM users WHERE id = $1`

// FindByID fetches a user by its login id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var u User
	c := &u.Credentials
	err := r.pool.QueryRow(ctx, selectUser, id).Scan(
		&u.ID, &u.Name, &u.Status, &c.Hash, &c.ChangedAt, &c.ExpiresAt,
		&c.MustChange, &c.FailedAttempts, &c.LockedUntil, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w: %w", shared.ErrInfrastructure, err)
	}
	return &u, nil
}

// IncrementFailures updates the counter in a single statement so concurrent
// failures never lose an increment.
func (r *PGRepository) IncrementFailures(ctx context.Context, id string, now time.Time) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `UPDATE users SET
	failed_attempts = CASE WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1 ELSE failed_attempts + 1 END,
	locked_until = CASE WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN NULL ELSE locked_until END,
	updated_at = NOW()
WHERE id = $1
RETURNING failed_attempts`, id, now).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return attempts, nil
}

// Lock stores the lockout deadline.
func (r *PGRepository) Lock(ctx context.Context, id string, until time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET locked_until = $2, updated_at = NOW() WHERE id = $1`, id, until)
	return err
}

// RecordSuccess clears the lockout state and stamps the login time.
func (r *PGRepository) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) UpdatePassword(ctx context.Context, id string, update PasswordUpdate) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET
	password_hash = $2,
	password_changed_at = $3,
	password_expires_at = $4,
	must_change_password = $5,
	failed_attempts = 0,
	locked_until = NULL,
	updated_at = NOW()
WHERE id = $1`, id, update.Hash, update.ChangedAt, update.ExpiresAt, update.MustChange)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) History() password.HistoryStore {
	return password.NewRepository(t.tx)
}

var _ Repository = (*PGRepository)(nil)
