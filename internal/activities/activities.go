package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexisense/internal/analysis"
	"lexisense/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// Error types surfaced to workflows as non-retryable application errors.
const (
	ErrTypeNotConfigured    = "NotConfiguredError"
	ErrTypeSchemaValidation = "SchemaValidationError"
	ErrTypeChunkOutOfRange  = "ChunkOutOfRange"
)

type Activities struct {
	store       analysis.Store
	extractor   *analysis.Extractor
	callTimeout time.Duration
	logger      *zap.Logger
}

func New(store analysis.Store, extractor *analysis.Extractor, callTimeout time.Duration, logger *zap.Logger) *Activities {
	if callTimeout <= 0 {
		callTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{store: store, extractor: extractor, callTimeout: callTimeout, logger: logger}
}

func (a *Activities) SetContractStatusActivity(ctx context.Context, in SetContractStatusInput) error {
	return a.store.SetDocumentStatus(ctx, in.ContractID, in.Status, in.FailReason)
}

func (a *Activities) CountChunksActivity(ctx context.Context, in CountChunksInput) (CountChunksOutput, error) {
	text, err := a.store.GetDocumentText(ctx, in.ContractID)
	if err != nil {
		return CountChunksOutput{}, fmt.Errorf("load contract text: %w", err)
	}
	return CountChunksOutput{Count: len(util.ChunkText(text, in.MaxChunkChars))}, nil
}

// AnalyzeChunkActivity re-derives chunk ChunkIndex from the stored text so
// workflow history carries indexes rather than contract text. Transient
// failures are left to the activity retry policy.
func (a *Activities) AnalyzeChunkActivity(ctx context.Context, in AnalyzeChunkInput) (AnalyzeChunkOutput, error) {
	text, err := a.store.GetDocumentText(ctx, in.ContractID)
	if err != nil {
		return AnalyzeChunkOutput{}, fmt.Errorf("load contract text: %w", err)
	}
	pieces := util.ChunkText(text, in.MaxChunkChars)
	if in.ChunkIndex < 0 || in.ChunkIndex >= len(pieces) {
		msg := fmt.Sprintf("chunk %d out of range (%d chunks)", in.ChunkIndex, len(pieces))
		return AnalyzeChunkOutput{}, temporal.NewNonRetryableApplicationError(msg, ErrTypeChunkOutOfRange, nil)
	}

	ctx = analysis.WithCallScope(ctx, in.ContractID, in.ChunkIndex)
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	partial, info, err := a.extractor.AnalyzeChunk(callCtx, pieces[in.ChunkIndex])
	if err != nil {
		a.logger.Warn("chunk analysis failed",
			zap.String("contract_id", in.ContractID),
			zap.Int("chunk", in.ChunkIndex),
			zap.String("provider", info.Name),
			zap.Error(err))
		return AnalyzeChunkOutput{}, toActivityError(err)
	}
	return AnalyzeChunkOutput{Partial: partial, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) SaveAnalysisActivity(ctx context.Context, in SaveAnalysisInput) error {
	if err := a.store.SaveAnalysisResult(ctx, in.ContractID, in.Result); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func toActivityError(err error) error {
	var nc *analysis.NotConfiguredError
	if errors.As(err, &nc) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotConfigured, err)
	}
	var sv *analysis.SchemaValidationError
	if errors.As(err, &sv) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeSchemaValidation, err)
	}
	return err
}
