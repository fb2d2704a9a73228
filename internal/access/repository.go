package access

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads access grants from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UserFacilities lists the facilities the user is scoped to.
func (r *Repository) UserFacilities(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT facility_id FROM user_facilities WHERE user_id = $1 ORDER BY facility_id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UserCustomers lists the customers the user is scoped to.
func (r *Repository) UserCustomers(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT customer_id FROM user_customers WHERE user_id = $1 ORDER BY customer_id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UserGrants returns the user's status, roles and the distinct permissions
// of those roles in one round trip.
func (r *Repository) UserGrants(ctx context.Context, userID string) (Grants, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND status = 'A')`, userID)
	batch.Queue(`SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	batch.Queue(`SELECT DISTINCT rp.permission_id
FROM role_permissions rp
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = $1
ORDER BY rp.permission_id`, userID)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var active bool
	if err := results.QueryRow().Scan(&active); err != nil {
		return Grants{}, err
	}
	if !active {
		return Grants{Disabled: true}, nil
	}
	roleRows, err := results.Query()
	if err != nil {
		return Grants{}, err
	}
	roles, err := pgx.CollectRows(roleRows, pgx.RowTo[string])
	if err != nil {
		return Grants{}, err
	}
	permRows, err := results.Query()
	if err != nil {
		return Grants{}, err
	}
	perms, err := pgx.CollectRows(permRows, pgx.RowTo[string])
	if err != nil {
		return Grants{}, err
	}
	return Grants{Roles: roles, Permissions: perms}, nil
}

var _ Store = (*Repository)(nil)
