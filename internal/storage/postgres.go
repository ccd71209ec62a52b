package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	createStateTableSQL = `CREATE TABLE IF NOT EXISTS state_records (
        name       TEXT PRIMARY KEY,
        payload    JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	upsertRecordSQL = `INSERT INTO state_records (name, payload, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (name) DO UPDATE
    SET payload = EXCLUDED.payload,
        updated_at = EXCLUDED.updated_at;`

	selectRecordSQL = `SELECT payload FROM state_records WHERE name = $1;`
)

// PostgresStore keeps the state records in a single jsonb table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a PostgresStore and ensures the
// state table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrNotConfigured
	}
	if _, err := pool.Exec(ctx, createStateTableSQL); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// LoadCooldowns reads the cooldown record. A missing or corrupt payload
// yields an empty state without error.
func (s *PostgresStore) LoadCooldowns(ctx context.Context) (CooldownState, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var payload []byte
	if err := pool.QueryRow(ctx, selectRecordSQL, cooldownRecord).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CooldownState{}, nil
		}
		return nil, fmt.Errorf("load cooldowns: %w", err)
	}

	state := CooldownState{}
	if err := json.Unmarshal(payload, &state); err != nil {
		return CooldownState{}, nil
	}
	return state, nil
}

// SaveCooldowns overwrites the cooldown record wholesale.
func (s *PostgresStore) SaveCooldowns(ctx context.Context, state CooldownState) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cooldowns: %w", err)
	}
	if _, err := pool.Exec(ctx, upsertRecordSQL, cooldownRecord, payload); err != nil {
		return fmt.Errorf("save cooldowns: %w", err)
	}
	return nil
}

// PublishStatus overwrites the status record with the latest snapshot.
func (s *PostgresStore) PublishStatus(ctx context.Context, snapshot StatusSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal status snapshot: %w", err)
	}
	if _, err := pool.Exec(ctx, upsertRecordSQL, statusRecord, payload); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// LoadStatus returns the latest published snapshot, or nil when none exists.
func (s *PostgresStore) LoadStatus(ctx context.Context) (*StatusSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var payload []byte
	if err := pool.QueryRow(ctx, selectRecordSQL, statusRecord).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load status: %w", err)
	}

	var snapshot StatusSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decode status snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

var _ StateStore = (*PostgresStore)(nil)
