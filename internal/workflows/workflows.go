package workflows

import (
	"errors"
	"fmt"
	"time"

	"lexisense/internal/activities"
	"lexisense/internal/analysis"
	"lexisense/internal/config"
	"lexisense/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetAnalysisProgress = "GetAnalysisProgress"

// WorkflowID is the id that gives one contract at most one running analysis.
func WorkflowID(contractID string) string {
	return "analyze-" + contractID
}

// AnalyzeContractWorkflow is the durable form of the in-process pipeline:
// chunks run as activities in bounded batches, results are merged in chunk
// order and persisted; the save marks the contract analyzed.
func AnalyzeContractWorkflow(ctx workflow.Context, input AnalyzeContractInput) (string, error) {
	progress := AnalysisProgress{
		ContractID:  input.ContractID,
		CurrentStep: "init",
		Status:      string(models.StatusProcessing),
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetAnalysisProgress, func() (AnalysisProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	maxAttempts := input.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        20 * time.Second,
			MaximumAttempts:        int32(maxAttempts),
			NonRetryableErrorTypes: []string{activities.ErrTypeNotConfigured, activities.ErrTypeSchemaValidation},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	concurrency := input.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > config.MaxChunkConcurrency {
		concurrency = config.MaxChunkConcurrency
	}

	fail := func(chunk int, stage string, cause error) (string, error) {
		if temporal.IsCanceledError(cause) {
			return "", cause
		}
		progress.Status = string(models.StatusFailed)
		if chunk < 0 {
			progress.FailReason = fmt.Sprintf("%s: %v", stage, cause)
		} else {
			progress.FailReason = fmt.Sprintf("chunk %d %s: %v", chunk, stage, cause)
		}
		logger.Error("contract analysis failed", "contract_id", input.ContractID, "chunk", chunk, "stage", stage, "error", cause)
		_ = workflow.ExecuteActivity(ctx, "SetContractStatusActivity", activities.SetContractStatusInput{
			ContractID: input.ContractID,
			Status:     models.StatusFailed,
			FailReason: progress.FailReason,
		}).Get(ctx, nil)
		return progress.Status, nil
	}

	progress.CurrentStep = "mark_processing"
	if err := workflow.ExecuteActivity(ctx, "SetContractStatusActivity", activities.SetContractStatusInput{
		ContractID: input.ContractID,
		Status:     models.StatusProcessing,
	}).Get(ctx, nil); err != nil {
		return "", err
	}

	progress.CurrentStep = "chunk"
	var countOut activities.CountChunksOutput
	if err := workflow.ExecuteActivity(ctx, "CountChunksActivity", activities.CountChunksInput{
		ContractID:    input.ContractID,
		MaxChunkChars: input.MaxChunkChars,
	}).Get(ctx, &countOut); err != nil {
		return fail(-1, analysis.StageChunk, err)
	}
	total := countOut.Count
	progress.TotalChunks = total
	progress.ChunkStatus = make([]string, total)
	for i := range progress.ChunkStatus {
		progress.ChunkStatus[i] = "pending"
	}

	progress.CurrentStep = "extract"
	partials := make([]models.PartialAnalysis, total)
	var first activities.AnalyzeChunkOutput
	for start := 0; start < total; start += concurrency {
		end := start + concurrency
		if end > total {
			end = total
		}
		futures := make([]workflow.Future, 0, end-start)
		for i := start; i < end; i++ {
			progress.ChunkStatus[i] = "processing"
			futures = append(futures, workflow.ExecuteActivity(ctx, "AnalyzeChunkActivity", activities.AnalyzeChunkInput{
				ContractID:    input.ContractID,
				ChunkIndex:    i,
				MaxChunkChars: input.MaxChunkChars,
			}))
		}
		for offset, f := range futures {
			idx := start + offset
			var out activities.AnalyzeChunkOutput
			if err := f.Get(ctx, &out); err != nil {
				progress.ChunkStatus[idx] = "failed"
				return fail(idx, chunkStage(err), err)
			}
			partials[idx] = out.Partial
			if idx == 0 {
				first = out
			}
			progress.ChunkStatus[idx] = "done"
			progress.Done++
		}
	}

	progress.CurrentStep = "persist"
	result := analysis.Merge(partials)
	result.Provider = first.ProviderName
	result.Model = first.Model
	result.AnalyzedAt = workflow.Now(ctx).UTC()
	progress.Provider = result.Provider
	if err := workflow.ExecuteActivity(ctx, "SaveAnalysisActivity", activities.SaveAnalysisInput{
		ContractID: input.ContractID,
		Result:     result,
	}).Get(ctx, nil); err != nil {
		return fail(-1, analysis.StagePersist, err)
	}

	progress.CurrentStep = "done"
	progress.Status = string(models.StatusAnalyzed)
	return progress.Status, nil
}

func chunkStage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == activities.ErrTypeSchemaValidation {
		return analysis.StageValidate
	}
	return analysis.StageExtract
}
