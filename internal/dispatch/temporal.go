package dispatch

import (
	"context"
	"errors"
	"fmt"

	"lexisense/internal/analysis"
	"lexisense/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// Temporal starts AnalyzeContractWorkflow. The contract text must already be
// stored; activities load it by id.
type Temporal struct {
	client    client.Client
	taskQueue string
	input     workflows.AnalyzeContractInput
	logger    *zap.Logger
}

func NewTemporal(c client.Client, taskQueue string, defaults workflows.AnalyzeContractInput, logger *zap.Logger) *Temporal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Temporal{client: c, taskQueue: taskQueue, input: defaults, logger: logger}
}

func (t *Temporal) Dispatch(ctx context.Context, req analysis.Request) error {
	input := t.input
	input.ContractID = req.DocumentID
	we, err := t.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       workflows.WorkflowID(req.DocumentID),
		TaskQueue:                                t.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.AnalyzeContractWorkflow, input)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return analysis.ErrAnalysisInProgress
	}
	if err != nil {
		return fmt.Errorf("start analysis workflow: %w", err)
	}
	t.logger.Info("analysis workflow started",
		zap.String("contract_id", req.DocumentID),
		zap.String("workflow_id", we.GetID()),
		zap.String("run_id", we.GetRunID()))
	return nil
}

// Progress queries the running workflow for per-chunk state.
func (t *Temporal) Progress(ctx context.Context, contractID string) (workflows.AnalysisProgress, error) {
	var p workflows.AnalysisProgress
	resp, err := t.client.QueryWorkflow(ctx, workflows.WorkflowID(contractID), "", workflows.QueryGetAnalysisProgress)
	if err != nil {
		return p, fmt.Errorf("query analysis progress: %w", err)
	}
	if err := resp.Get(&p); err != nil {
		return p, fmt.Errorf("decode analysis progress: %w", err)
	}
	return p, nil
}
