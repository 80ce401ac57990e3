package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melodex/melodex/internal/application/enrich"
	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/ratelimit"
)

// Store is the PostgreSQL implementation of every repository interface in the
// pipeline:
//   - application/queue.Store (claim, reset, requeue, cleanup, metrics)
//   - ratelimit.Store (per-endpoint counters)
//   - application/enrich.Repository (catalog upserts and child batches)
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ queue.Store       = (*Store)(nil)
	_ ratelimit.Store   = (*Store)(nil)
	_ enrich.Repository = (*Store)(nil)
)

// NewStore creates a store over an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for raw queries in tests.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// withTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func (s *Store) withTx(ctx context.Context, operation string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "rollback after panic failed",
					"operation", operation,
					"panic", p,
					"rollback_error", rbErr)
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "rollback failed",
					"operation", operation,
					"original_error", err,
					"rollback_error", rbErr)
			}
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return
}
