package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a contract id has no row.
var ErrNotFound = errors.New("contract not found")

type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS contracts (
  contract_id UUID PRIMARY KEY,
  tenant TEXT,
  filename TEXT NOT NULL,
  content_type TEXT,
  object_key TEXT,
  text TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL CHECK (status IN ('processing','analyzed','failed')),
  fail_reason TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_contracts_tenant ON contracts(tenant, created_at DESC);

CREATE TABLE IF NOT EXISTS analysis_results (
  contract_id UUID PRIMARY KEY REFERENCES contracts(contract_id) ON DELETE CASCADE,
  result JSONB NOT NULL,
  provider TEXT,
  model TEXT,
  chunk_count INT NOT NULL DEFAULT 0,
  analyzed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS llm_calls (
  call_id UUID PRIMARY KEY,
  operation TEXT NOT NULL,
  contract_id UUID,
  chunk_index INT,
  provider_name TEXT,
  model TEXT,
  status TEXT NOT NULL,
  error_type TEXT,
  duration_ms BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_llm_calls_contract ON llm_calls(contract_id, created_at DESC);
`

// EnsureSchema creates the tables when they are missing. It is safe to run on
// every start.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
