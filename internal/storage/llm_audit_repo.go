package storage

import (
	"context"
	"fmt"

	"lexisense/internal/analysis"

	"github.com/google/uuid"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

// RecordCall satisfies analysis.CallRecorder.
func (r *LLMAuditRepo) RecordCall(ctx context.Context, rec analysis.CallRecord) error {
	var chunk *int
	if rec.ChunkIndex >= 0 {
		chunk = &rec.ChunkIndex
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, contract_id, chunk_index, provider_name, model, status, error_type, duration_ms)
VALUES ($1, $2, NULLIF($3,'')::uuid, $4, $5, $6, $7, NULLIF($8,''), $9)`,
		uuid.NewString(), rec.Operation, rec.DocumentID, chunk, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
