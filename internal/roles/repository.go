package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
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

// ListRoles returns all roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Role, error) {
		var role Role
		err := row.Scan(&role.ID, &role.Name)
		return role, err
	})
}

// RolePermissions lists the permission tokens granted to a role.
func (r *Repository) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	return rolePermissions(ctx, r.pool, roleID)
}

// ListPermissions returns the permission catalogue.
func (r *Repository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, description FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (rbac.Permission, error) {
		var p rbac.Permission
		err := row.Scan(&p.Token, &p.Description)
		return p, err
	})
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func rolePermissions(ctx context.Context, q querier, roleID string) ([]string, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.ErrNotFound
	}
	rows, err := q.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	return rolePermissions(ctx, t.tx, roleID)
}

func (t *txRepo) ReplacePermissions(ctx context.Context, roleID string, tokens []string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) SELECT $1, UNNEST($2::text[])`, roleID, tokens)
	if err != nil {
		return db.MapError(err)
	}
	return nil
}

var _ rbac.Catalog = (*Repository)(nil)

var errNoRole = errors.New("roles: role id required")
