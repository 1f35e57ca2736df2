package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting every query run
// either directly against the pool or inside a caller-managed transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the typed wrapper over every stored operation this service needs.
// It holds no state beyond the handle it runs against, so the same struct can
// wrap a pool for reads or a transaction for writes.
type Queries struct {
	db DBTX
}

// New wraps a DBTX (pool or tx) in a Queries.
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}

// WithTx returns a new Queries bound to an explicit transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
