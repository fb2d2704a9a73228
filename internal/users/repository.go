package users

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

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUsers = `SELECT u.id, u.name, COALESCE(u.email, ''), u.status, COALESCE(u.primary_facility, ''), u.language,
	u.must_change_password, u.password_expires_at, u.last_login_at, u.created_at, u.updated_at,
	ARRAY(SELECT role_id FROM user_roles WHERE user_id = u.id ORDER BY role_id),
	ARRAY(SELECT facility_id FROM user_facilities WHERE user_id = u.id ORDER BY facility_id),
	ARRAY(SELECT customer_id FROM user_customers WHERE user_id = u.id ORDER BY customer_id)
FROM users u`

func scanUser(row pgx.CollectableRow) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Status, &u.PrimaryFacility, &u.Language,
		&u.MustChangePassword, &u.PasswordExpiresAt, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
		&u.Roles, &u.Facilities, &u.Customers)
	return u, err
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUsers+` ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanUser)
}

// GetUser returns one user with its assignments.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	rows, err := r.pool.Query(ctx, selectUsers+` WHERE u.id = $1`, id)
	if err != nil {
		return User{}, err
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

// ExpiringBetween lists active users whose password expires in [from, to).
func (r *Repository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUsers+`
WHERE u.status = 'A' AND u.password_expires_at >= $1 AND u.password_expires_at < $2
ORDER BY u.password_expires_at`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanUser)
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertUser(ctx context.Context, acc NewAccount) error {
	p := acc.Profile
	_, err := t.tx.Exec(ctx, `INSERT INTO users
	(id, name, email, password_hash, password_changed_at, password_expires_at, must_change_password, status, primary_facility, language)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, TRUE, 'A', NULLIF($7, ''), $8)`,
		acc.ID, p.Name, p.Email, acc.Hash, acc.ChangedAt, acc.ExpiresAt, p.PrimaryFacility, p.Language)
	return db.MapError(err)
}

func (t *txRepo) LockUser(ctx context.Context, id string) (User, error) {
	rows, err := t.tx.Query(ctx, selectUsers+` WHERE u.id = $1 FOR UPDATE OF u`, id)
	if err != nil {
		return User{}, err
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

func (t *txRepo) UpdateProfile(ctx context.Context, id string, p Profile) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET name = $2, email = NULLIF($3, ''), primary_facility = NULLIF($4, ''), language = $5, updated_at = NOW() WHERE id = $1`,
		id, p.Name, p.Email, p.PrimaryFacility, p.Language)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) SetPassword(ctx context.Context, id, hash string, changedAt time.Time, expiresAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE users SET password_hash = $2, password_changed_at = $3, password_expires_at = $4,
	must_change_password = TRUE, failed_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1`,
		id, hash, changedAt, expiresAt)
	return err
}

func (t *txRepo) Disable(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET status = 'I', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplaceAssignments rewrites the three join tables of the user. Nil slices
// leave the corresponding table untouched.
func (t *txRepo) ReplaceAssignments(ctx context.Context, id string, a *Assignments) error {
	if a == nil {
		return nil
	}
	batch := &pgx.Batch{}
	queue := func(table, column string, values []string) {
		if values == nil {
			return
		}
		batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table), id)
		if len(values) > 0 {
			batch.Queue(fmt.Sprintf(`INSERT INTO %s (user_id, %s) SELECT $1, UNNEST($2::text[]) ON CONFLICT DO NOTHING`, table, column), id, values)
		}
	}
	queue("user_roles", "role_id", a.Roles)
	queue("user_facilities", "facility_id", a.Facilities)
	queue("user_customers", "customer_id", a.Customers)
	if batch.Len() == 0 {
		return nil
	}
	return db.MapError(t.tx.SendBatch(ctx, batch).Close())
}

func (t *txRepo) History() password.HistoryStore {
	return password.NewRepository(t.tx)
}
