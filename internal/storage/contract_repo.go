package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lexisense/internal/models"

	"github.com/jackc/pgx/v5"
)

type ContractRepo struct {
	db *DB
}

func NewContractRepo(db *DB) *ContractRepo {
	return &ContractRepo{db: db}
}

func (r *ContractRepo) CreateContract(ctx context.Context, c models.Contract) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO contracts (contract_id, tenant, filename, content_type, object_key, text, status)
VALUES ($1, NULLIF($2,''), $3, NULLIF($4,''), NULLIF($5,''), $6, $7)`,
		c.ContractID, c.Tenant, c.Filename, c.ContentType, c.ObjectKey, c.Text, c.Status,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (r *ContractRepo) GetContract(ctx context.Context, contractID string) (models.Contract, error) {
	var (
		c      models.Contract
		status string
		raw    []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT c.contract_id::text, COALESCE(c.tenant,''), c.filename, COALESCE(c.content_type,''),
       COALESCE(c.object_key,''), c.status, COALESCE(c.fail_reason,''), c.created_at, c.updated_at,
       a.result
FROM contracts c
LEFT JOIN analysis_results a ON a.contract_id = c.contract_id
WHERE c.contract_id = $1`, contractID).
		Scan(&c.ContractID, &c.Tenant, &c.Filename, &c.ContentType, &c.ObjectKey, &status, &c.FailReason, &c.CreatedAt, &c.UpdatedAt, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Contract{}, ErrNotFound
	}
	if err != nil {
		return models.Contract{}, fmt.Errorf("get contract: %w", err)
	}
	c.Status = models.ContractStatus(status)
	if len(raw) > 0 {
		var result models.AnalysisResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return models.Contract{}, fmt.Errorf("decode analysis result: %w", err)
		}
		c.Analysis = &result
	}
	return c, nil
}

func (r *ContractRepo) GetDocumentText(ctx context.Context, contractID string) (string, error) {
	var text string
	err := r.db.Pool.QueryRow(ctx, `SELECT text FROM contracts WHERE contract_id=$1`, contractID).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get contract text: %w", err)
	}
	return text, nil
}

// SaveAnalysisResult replaces the contract's analysis and marks it analyzed
// in one transaction. The contract row is locked first so a concurrent delete
// cannot interleave.
func (r *ContractRepo) SaveAnalysisResult(ctx context.Context, contractID string, result models.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save analysis: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT contract_id::text FROM contracts WHERE contract_id=$1 FOR UPDATE`, contractID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock contract: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO analysis_results (contract_id, result, provider, model, chunk_count, analyzed_at)
VALUES ($1, $2::jsonb, NULLIF($3,''), NULLIF($4,''), $5, $6)
ON CONFLICT (contract_id)
DO UPDATE SET
  result = EXCLUDED.result,
  provider = EXCLUDED.provider,
  model = EXCLUDED.model,
  chunk_count = EXCLUDED.chunk_count,
  analyzed_at = EXCLUDED.analyzed_at`,
		contractID, string(payload), result.Provider, result.Model, result.ChunkCount, result.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis result: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE contracts SET status=$2, fail_reason=NULL, updated_at=NOW() WHERE contract_id=$1`, contractID, string(models.StatusAnalyzed)); err != nil {
		return fmt.Errorf("mark contract analyzed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit analysis result: %w", err)
	}
	return nil
}

func (r *ContractRepo) SetDocumentStatus(ctx context.Context, contractID string, status models.ContractStatus, reason string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE contracts SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE contract_id=$1`, contractID, string(status), reason)
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
