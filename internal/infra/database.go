package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the pgx pool. Zero fields fall back to the defaults.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// apply sets the pool limits. Every mutating vault call holds one connection
// for its whole unit of work, and a custody movement may take a second one,
// so MaxConns bounds concurrent deposits and withdrawals.
func (o PoolOptions) apply(cfg *pgxpool.Config) {
	cfg.MaxConns = orDefault(o.MaxConns, 10)
	cfg.MinConns = orDefault(o.MinConns, 1)
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	cfg.MaxConnLifetime = orDefault(o.MaxConnLifetime, 30*time.Minute)
	cfg.HealthCheckPeriod = orDefault(o.HealthCheckPeriod, 30*time.Second)
}

// NewPostgresPool configures a PostgreSQL connection pool and pings it.
func NewPostgresPool(ctx context.Context, url string, opts PoolOptions) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	opts.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

func orDefault[T int | int32 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
