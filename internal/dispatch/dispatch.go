// Package dispatch fires analysis runs without making the caller wait.
package dispatch

import (
	"context"

	"lexisense/internal/analysis"
)

// Dispatcher starts analysis of a stored contract and returns as soon as the
// run is accepted. A contract with a run in flight yields
// analysis.ErrAnalysisInProgress.
type Dispatcher interface {
	Dispatch(ctx context.Context, req analysis.Request) error
}

// Local runs the pipeline in process. Runs are bound to base, not to the
// caller's context, so they outlive the HTTP request that triggered them.
type Local struct {
	pipeline *analysis.Pipeline
	base     context.Context
}

func NewLocal(base context.Context, pipeline *analysis.Pipeline) *Local {
	return &Local{pipeline: pipeline, base: base}
}

func (l *Local) Dispatch(_ context.Context, req analysis.Request) error {
	_, err := l.pipeline.Start(l.base, req)
	return err
}

// Wait blocks until every dispatched run has finished.
func (l *Local) Wait() {
	l.pipeline.Wait()
}
