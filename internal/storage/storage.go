// Package storage wires the relational store (PostgreSQL via pgx) behind the
// query layer in internal/storage/db, plus the Organization-scoped RLS
// context helpers used for statements against the RLS-protected tables.
package storage

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laventecare/authcore/internal/storage/db"
)

// NewPostgres opens a connection pool of 2x the CPU count against dsn and
// verifies it with a ping before returning, so callers fail fast at startup
// rather than on first use.
func NewPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = int32(2 * runtime.NumCPU())

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

// New wraps a pool (or transaction) in the query layer.
func New(dbtx db.DBTX) *db.Queries {
	return db.New(dbtx)
}
