package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

func TestMapError(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_pkey"})
	require.ErrorIs(t, MapError(dup), shared.ErrDuplicate)

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "role_permissions_permission_id_fkey"}
	require.ErrorIs(t, MapError(fk), shared.ErrValidation)

	other := &pgconn.PgError{Code: "40001"}
	require.Same(t, error(other), MapError(other))

	plain := errors.New("boom")
	require.Equal(t, plain, MapError(plain))
}
