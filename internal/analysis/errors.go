package analysis

import (
	"errors"
	"fmt"
)

// ErrAnalysisCancelled marks a run abandoned because its context ended. The
// document is left in processing.
var ErrAnalysisCancelled = errors.New("analysis cancelled")

// ErrAnalysisInProgress rejects a trigger for a document that already has a
// run in flight.
var ErrAnalysisInProgress = errors.New("analysis already in progress for document")

// NotConfiguredError means no model credential is configured. It is permanent.
type NotConfiguredError struct {
	Provider string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("extraction provider %q is not configured", e.Provider)
}

// ExtractionError is a network or provider failure. It is transient.
type ExtractionError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("extraction via %s failed with status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("extraction via %s failed: %s", e.Provider, e.Message)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmptyResponseError means the provider answered without content. It is
// transient.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("extraction via %s returned an empty response", e.Provider)
}

// SchemaValidationError means the model output did not match the analysis
// schema. It is not retried with the same prompt. Reason never contains model
// output; Err may, and is only logged at debug.
type SchemaValidationError struct {
	Reason string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	return "schema validation failed: " + e.Reason
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

const (
	StageExtract  = "extract"
	StageValidate = "validate"
	StageChunk    = "chunk"
	StagePersist  = "persist"
)

// RunError identifies which chunk and stage sank an analysis run.
type RunError struct {
	DocumentID string
	ChunkIndex int
	Stage      string
	Err        error
}

func (e *RunError) Error() string {
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("analysis of %s failed at %s: %v", e.DocumentID, e.Stage, e.Err)
	}
	return fmt.Sprintf("analysis of %s failed at chunk %d (%s): %v", e.DocumentID, e.ChunkIndex, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient extraction failure.
func IsRetryable(err error) bool {
	var ee *ExtractionError
	var er *EmptyResponseError
	return errors.As(err, &ee) || errors.As(err, &er)
}

// IsPermanent reports whether err must never be retried.
func IsPermanent(err error) bool {
	var nc *NotConfiguredError
	var sv *SchemaValidationError
	return errors.As(err, &nc) || errors.As(err, &sv)
}

// stageOf maps a chunk failure to the pipeline stage that produced it.
func stageOf(err error) string {
	var sv *SchemaValidationError
	if errors.As(err, &sv) {
		return StageValidate
	}
	return StageExtract
}
