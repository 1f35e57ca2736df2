package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laventecare/authcore/internal/storage/db"
)

// WithOrgContext runs fn inside a transaction with app.current_org set via
// set_config, so row-level security policies scope every statement fn issues
// to orgID. set_config's third argument (true) makes the setting
// transaction-local: it vanishes on commit/rollback and never leaks onto a
// pooled connection reused by an unrelated request.
func WithOrgContext(ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, fn func(q *db.Queries) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_org', $1, true)`, orgID.String()); err != nil {
		return fmt.Errorf("set org context: %w", err)
	}

	if err := fn(db.New(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// WithoutRLS runs fn inside a transaction with no app.current_org set,
// reserved for operations that must see across organizations: system
// bootstrap, the background janitors, and superadmin tooling.
func WithoutRLS(ctx context.Context, pool *pgxpool.Pool, fn func(q *db.Queries) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(db.New(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ExecInOrgContext is a convenience wrapper around WithOrgContext for the
// common case of a single query returning a single value.
func ExecInOrgContext[T any](ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, fn func(q *db.Queries) (T, error)) (T, error) {
	var result T
	err := WithOrgContext(ctx, pool, orgID, func(q *db.Queries) error {
		var innerErr error
		result, innerErr = fn(q)
		return innerErr
	})
	return result, err
}
