package password

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository stores password history in PostgreSQL. Rows are ranked by the
// BIGSERIAL id so concurrent changes never misorder on clock skew.
type Repository struct {
	db DBTX
}

// NewRepository constructs a Repository on a pool or a transaction.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// RecentHashes returns up to limit hashes for the user, newest first.
func (r *Repository) RecentHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT password_hash FROM password_history WHERE user_id = $1 ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	hashes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// Append inserts one history row in a single statement.
func (r *Repository) Append(ctx context.Context, userID, hash string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO password_history (user_id, password_hash, changed_at) VALUES ($1, $2, NOW())`, userID, hash)
	return err
}

// PruneBeyond deletes rows older than the newest keep rows of every user and
// returns the number removed. Only the retention job calls it.
func (r *Repository) PruneBeyond(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("password: prune keep must be positive, got %d", keep)
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM password_history ph
USING (
	SELECT id, ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY id DESC) AS rn
	FROM password_history
) ranked
WHERE ph.id = ranked.id AND ranked.rn > $1`, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ HistoryStore = (*Repository)(nil)
