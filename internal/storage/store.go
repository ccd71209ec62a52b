package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"balance-sentinel/internal/config"
)

// Record names under which durable state is kept, in both backends.
const (
	cooldownRecord = "cooldowns"
	statusRecord   = "status"
)

// StateStore is the durable home of cooldown state and the status snapshot.
// LoadCooldowns treats a missing or corrupt record as an empty map; only
// infrastructure failures surface as errors, and callers downgrade those to
// a warning rather than failing the cycle.
type StateStore interface {
	LoadCooldowns(ctx context.Context) (CooldownState, error)
	SaveCooldowns(ctx context.Context, state CooldownState) error
	PublishStatus(ctx context.Context, snapshot StatusSnapshot) error
	LoadStatus(ctx context.Context) (*StatusSnapshot, error)
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("state.database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
