package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"lexisense/internal/models"
	"lexisense/internal/providers"
	"lexisense/internal/util"

	"go.uber.org/zap"
)

// ExtractionTemperature keeps extraction close to deterministic.
const ExtractionTemperature = 0.1

const (
	OpExtract         = "contract_extract"
	OpExtractReminder = "contract_extract_reminder"
	OpChat            = "contract_chat"
)

// CallRecord describes one model invocation for the audit log.
type CallRecord struct {
	DocumentID   string
	ChunkIndex   int
	Operation    string
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
	Duration     time.Duration
}

type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

type callScopeKey struct{}

type callScope struct {
	documentID string
	chunkIndex int
}

// WithCallScope tags model calls made with ctx with the document and chunk
// they belong to. chunkIndex is -1 for calls outside a chunk (chat).
func WithCallScope(ctx context.Context, documentID string, chunkIndex int) context.Context {
	return context.WithValue(ctx, callScopeKey{}, callScope{documentID: documentID, chunkIndex: chunkIndex})
}

func scopeFrom(ctx context.Context) callScope {
	if s, ok := ctx.Value(callScopeKey{}).(callScope); ok {
		return s
	}
	return callScope{chunkIndex: -1}
}

// Extractor wraps a single model call with the fixed instruction templates
// and maps provider failures onto the pipeline error taxonomy.
type Extractor struct {
	provider providers.LLMProvider
	recorder CallRecorder
	logger   *zap.Logger
}

func NewExtractor(p providers.LLMProvider, recorder CallRecorder, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: p, recorder: recorder, logger: logger}
}

// Extract asks the model for the JSON analysis of one chunk and returns the
// raw response text.
func (e *Extractor) Extract(ctx context.Context, chunkText string) (string, error) {
	text, _, err := e.complete(ctx, OpExtract, buildExtractionPrompt(chunkText, false))
	return text, err
}

// AnalyzeChunk extracts and validates one chunk. An answer that fails
// validation is re-asked once with a stricter reminder before giving up.
// Transient failures are returned as is for the caller's retry policy.
func (e *Extractor) AnalyzeChunk(ctx context.Context, chunkText string) (models.PartialAnalysis, providers.ProviderInfo, error) {
	raw, info, err := e.complete(ctx, OpExtract, buildExtractionPrompt(chunkText, false))
	if err != nil {
		return models.PartialAnalysis{}, info, err
	}
	partial, verr := Validate(raw)
	if verr == nil {
		return partial, info, nil
	}
	scope := scopeFrom(ctx)
	e.logger.Warn("chunk output failed validation, re-asking with schema reminder",
		zap.String("contract_id", scope.documentID),
		zap.Int("chunk", scope.chunkIndex),
		zap.String("stage", StageValidate),
		zap.Error(verr))
	e.logger.Debug("rejected model output",
		zap.String("contract_id", scope.documentID),
		zap.Int("chunk", scope.chunkIndex),
		zap.NamedError("detail", errors.Unwrap(verr)),
		zap.String("response", util.Preview(raw, 400)))

	raw, info, err = e.complete(ctx, OpExtractReminder, buildExtractionPrompt(chunkText, true))
	if err != nil {
		return models.PartialAnalysis{}, info, err
	}
	partial, err = Validate(raw)
	return partial, info, err
}

func (e *Extractor) complete(ctx context.Context, op, prompt string) (string, providers.ProviderInfo, error) {
	return e.Complete(ctx, providers.GenerateRequest{
		Operation:   op,
		System:      ExtractionSystemPrompt,
		Prompt:      prompt,
		Temperature: ExtractionTemperature,
		JSON:        true,
	})
}

// Complete performs exactly one provider call. Errors are always one of
// NotConfiguredError, ExtractionError or EmptyResponseError.
func (e *Extractor) Complete(ctx context.Context, req providers.GenerateRequest) (string, providers.ProviderInfo, error) {
	start := time.Now()
	resp, info, rawErr := e.provider.Generate(ctx, req)
	var err error
	switch {
	case rawErr != nil:
		err = mapProviderError(info.Name, rawErr)
	case strings.TrimSpace(resp.Text) == "":
		err = &EmptyResponseError{Provider: info.Name}
	}
	e.record(ctx, req.Operation, info, rawErr, err, time.Since(start))
	if err != nil {
		return "", info, err
	}
	return resp.Text, info, nil
}

// record audits one call. The error type is classified from the provider's
// own error, before it is mapped onto the pipeline taxonomy.
func (e *Extractor) record(ctx context.Context, op string, info providers.ProviderInfo, rawErr, callErr error, d time.Duration) {
	if e.recorder == nil {
		return
	}
	scope := scopeFrom(ctx)
	rec := CallRecord{
		DocumentID:   scope.documentID,
		ChunkIndex:   scope.chunkIndex,
		Operation:    op,
		ProviderName: info.Name,
		Model:        info.Model,
		Status:       "ok",
		Duration:     d,
	}
	if callErr != nil {
		rec.Status = "error"
		rec.ErrorType = "empty"
		if rawErr != nil {
			rec.ErrorType = string(providers.ClassifyError(rawErr))
		}
	}
	// The audit write must not be cut short by a call that just timed out.
	if err := e.recorder.RecordCall(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("record llm call failed", zap.String("operation", op), zap.Error(err))
	}
}

func mapProviderError(provider string, err error) error {
	if errors.Is(err, providers.ErrMissingCredential) {
		return &NotConfiguredError{Provider: provider}
	}
	var se *providers.StatusError
	if errors.As(err, &se) {
		return &ExtractionError{Provider: provider, StatusCode: se.StatusCode, Message: se.Message, Err: err}
	}
	return &ExtractionError{Provider: provider, Message: err.Error(), Err: err}
}
