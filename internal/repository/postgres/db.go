package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/refermart/internal/apperrors"
)

// DBTX is satisfied by pgxpool.Pool and pgx.Tx both
// so every repo works over the pool or inside a transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// dbError wraps unexpected store failures
// Connection class errors and timeouts map to apperrors.ErrStoreUnavailable
// so callers can tell retryable failures from terminal ones
func dbError(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code):
		return fmt.Errorf("db error: %v: %w", err, apperrors.ErrStoreUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("db error: %v: %w", err, apperrors.ErrStoreUnavailable)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
