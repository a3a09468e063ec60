// Package storage owns the connection to Postgres and hands out units of
// work. Nothing above this package ever sees a raw pool or transaction type
// other than through the Querier seam.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bankledger/internal/config"
)

// ErrConnect marks a failure to reach the database, as opposed to a
// statement failing inside an already-open unit of work.
var ErrConnect = errors.New("database connection failed")

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so repository code runs unchanged inside or outside a unit of work.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Gateway struct {
	pool *pgxpool.Pool
	cfg  *config.Config
	log  *zap.Logger
}

// Open parses the configured DSN, builds the pool and verifies connectivity.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Gateway, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse DSN: %v", ErrConnect, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	log.Info("connected to postgres",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database))

	return &Gateway{pool: pool, cfg: cfg, log: log}, nil
}

func (g *Gateway) Close() { g.pool.Close() }

func (g *Gateway) Ping(ctx context.Context) error { return g.pool.Ping(ctx) }

// Reader returns a pool-backed querier for operations that never mutate.
func (g *Gateway) Reader() Querier { return g.pool }

// WithinUnit runs fn inside a single transaction. The transaction commits
// only when fn returns nil; every other exit path, panics included, rolls
// the whole unit back. No retries happen here.
func (g *Gateway) WithinUnit(ctx context.Context, fn func(q Querier) error) error {
	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}
