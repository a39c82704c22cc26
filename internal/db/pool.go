// Package db provides the Postgres connection pool and bulk-load helpers
// shared by the job store.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool used by this module. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PoolConfig holds optional connection pool sizing.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// Connect opens and pings a pgx pool.
func Connect(ctx context.Context, connString string, cfg PoolConfig) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "db: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "db: ping")
	}
	return pool, nil
}
