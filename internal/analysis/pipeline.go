package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lexisense/internal/config"
	"lexisense/internal/models"
	"lexisense/internal/providers"
	"lexisense/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the pipeline needs. SaveAnalysisResult must
// atomically replace any previous result and set the document analyzed with
// no fail reason, so a stored result never sits next to a failed status.
type Store interface {
	GetDocumentText(ctx context.Context, documentID string) (string, error)
	SaveAnalysisResult(ctx context.Context, documentID string, result models.AnalysisResult) error
	SetDocumentStatus(ctx context.Context, documentID string, status models.ContractStatus, reason string) error
}

// Request triggers analysis of one document. An empty Text means the stored
// text is loaded.
type Request struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text,omitempty"`
}

type Chunk struct {
	Index int
	Text  string
}

// Outcome is delivered once for every detached run.
type Outcome struct {
	DocumentID string
	Status     models.ContractStatus
	Result     *models.AnalysisResult
	Err        error
}

type Options struct {
	MaxChunkChars int
	Concurrency   int
	CallTimeout   time.Duration
	Retry         RetryPolicy
}

func (o Options) normalized() Options {
	if o.MaxChunkChars <= 0 {
		o.MaxChunkChars = config.DefaultMaxChunkChars
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.Concurrency > config.MaxChunkConcurrency {
		o.Concurrency = config.MaxChunkConcurrency
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 45 * time.Second
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = DefaultRetryPolicy()
	}
	return o
}

// OptionsFromConfig maps the runtime configuration onto pipeline options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		MaxChunkChars: cfg.MaxChunkChars,
		Concurrency:   cfg.ChunkConcurrency,
		CallTimeout:   time.Duration(cfg.ExtractTimeoutSecs) * time.Second,
		Retry: RetryPolicy{
			MaxAttempts:     uint(cfg.ExtractMaxAttempts),
			InitialInterval: time.Duration(cfg.RetryInitialMillis) * time.Millisecond,
			MaxInterval:     30 * time.Second,
		},
	}
}

// Pipeline runs chunk, extract, validate, merge and persist for one document
// at a time per document id.
type Pipeline struct {
	store     Store
	extractor *Extractor
	opts      Options
	logger    *zap.Logger
	locks     *KeyedLock
	wg        sync.WaitGroup
	now       func() time.Time
}

func NewPipeline(store Store, extractor *Extractor, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		opts:      opts.normalized(),
		logger:    logger,
		locks:     NewKeyedLock(),
		now:       time.Now,
	}
}

// InFlight reports whether a run currently holds documentID.
func (p *Pipeline) InFlight(documentID string) bool {
	return p.locks.Held(documentID)
}

// Analyze runs the pipeline synchronously. It returns ErrAnalysisInProgress
// if another run holds the document.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (models.AnalysisResult, error) {
	release, ok := p.locks.TryLock(req.DocumentID)
	if !ok {
		return models.AnalysisResult{}, ErrAnalysisInProgress
	}
	defer release()
	return p.run(ctx, req)
}

// Start claims the document and runs the pipeline in the background. The
// returned channel yields exactly one Outcome and is then closed. A panic in
// the run marks the document failed instead of crashing the process.
func (p *Pipeline) Start(ctx context.Context, req Request) (<-chan Outcome, error) {
	release, ok := p.locks.TryLock(req.DocumentID)
	if !ok {
		return nil, ErrAnalysisInProgress
	}
	done := make(chan Outcome, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer release()
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("analysis run panicked",
					zap.String("contract_id", req.DocumentID),
					zap.Any("panic", r))
				reason := fmt.Sprintf("internal error: %v", r)
				if err := p.store.SetDocumentStatus(context.WithoutCancel(ctx), req.DocumentID, models.StatusFailed, reason); err != nil {
					p.logger.Error("mark contract failed", zap.String("contract_id", req.DocumentID), zap.Error(err))
				}
				done <- Outcome{DocumentID: req.DocumentID, Status: models.StatusFailed, Err: fmt.Errorf("analysis panicked: %v", r)}
			}
		}()

		result, err := p.run(ctx, req)
		done <- outcomeOf(req.DocumentID, result, err)
	}()
	return done, nil
}

// Wait blocks until every run started with Start has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func outcomeOf(documentID string, result models.AnalysisResult, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{DocumentID: documentID, Status: models.StatusAnalyzed, Result: &result}
	case errors.Is(err, ErrAnalysisCancelled):
		return Outcome{DocumentID: documentID, Status: models.StatusProcessing, Err: err}
	default:
		return Outcome{DocumentID: documentID, Status: models.StatusFailed, Err: err}
	}
}

func (p *Pipeline) run(ctx context.Context, req Request) (models.AnalysisResult, error) {
	id := req.DocumentID
	log := p.logger.With(zap.String("contract_id", id))

	if err := p.store.SetDocumentStatus(ctx, id, models.StatusProcessing, ""); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.AnalysisResult{}, fmt.Errorf("%w: %w", ErrAnalysisCancelled, ctxErr)
		}
		return models.AnalysisResult{}, &RunError{DocumentID: id, ChunkIndex: -1, Stage: StagePersist, Err: fmt.Errorf("set processing: %w", err)}
	}

	text := req.Text
	if text == "" {
		stored, err := p.store.GetDocumentText(ctx, id)
		if err != nil {
			return p.abort(ctx, log, id, &RunError{DocumentID: id, ChunkIndex: -1, Stage: StageChunk, Err: fmt.Errorf("load document text: %w", err)})
		}
		text = stored
	}

	pieces := util.ChunkText(text, p.opts.MaxChunkChars)
	log.Info("analysis started", zap.Int("chunks", len(pieces)), zap.Int("concurrency", p.opts.Concurrency))

	partials := make([]models.PartialAnalysis, len(pieces))
	infos := make([]providers.ProviderInfo, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, piece := range pieces {
		g.Go(func() error {
			partial, info, err := p.analyzeChunk(gctx, log, id, Chunk{Index: i, Text: piece})
			if err != nil {
				return &RunError{DocumentID: id, ChunkIndex: i, Stage: stageOf(err), Err: err}
			}
			partials[i] = partial
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.abort(ctx, log, id, err)
	}

	result := Merge(partials)
	result.Provider = infos[0].Name
	result.Model = infos[0].Model
	result.AnalyzedAt = p.now().UTC()

	// Saving the result also marks the document analyzed in the same write.
	if err := p.store.SaveAnalysisResult(ctx, id, result); err != nil {
		return p.abort(ctx, log, id, &RunError{DocumentID: id, ChunkIndex: -1, Stage: StagePersist, Err: fmt.Errorf("save analysis: %w", err)})
	}
	log.Info("contract analyzed",
		zap.Int("chunks", result.ChunkCount),
		zap.Int("parties", len(result.Parties)),
		zap.Int("dates", len(result.Dates)),
		zap.Int("risks", len(result.Risks)))
	return result, nil
}

func (p *Pipeline) analyzeChunk(ctx context.Context, log *zap.Logger, id string, c Chunk) (models.PartialAnalysis, providers.ProviderInfo, error) {
	type answer struct {
		partial models.PartialAnalysis
		info    providers.ProviderInfo
	}
	ctx = WithCallScope(ctx, id, c.Index)
	attempt := 0
	a, err := Retry(ctx, p.opts.Retry, func(ctx context.Context) (answer, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
		defer cancel()
		partial, info, err := p.extractor.AnalyzeChunk(callCtx, c.Text)
		return answer{partial: partial, info: info}, err
	}, func(err error, wait time.Duration) {
		log.Warn("chunk attempt failed, retrying",
			zap.Int("chunk", c.Index),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	return a.partial, a.info, err
}

// abort ends a run. A cancelled run leaves the document in processing so it
// can be retriggered; anything else marks it failed with the chunk and stage.
func (p *Pipeline) abort(ctx context.Context, log *zap.Logger, id string, err error) (models.AnalysisResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("analysis cancelled, contract left in processing", zap.Error(err))
		return models.AnalysisResult{}, fmt.Errorf("%w: %w", ErrAnalysisCancelled, ctxErr)
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		log.Error("analysis failed",
			zap.Int("chunk", runErr.ChunkIndex),
			zap.String("stage", runErr.Stage),
			zap.Error(runErr.Err))
	} else {
		log.Error("analysis failed", zap.Error(err))
	}
	if serr := p.store.SetDocumentStatus(context.WithoutCancel(ctx), id, models.StatusFailed, failReason(err)); serr != nil {
		log.Error("mark contract failed", zap.Error(serr))
	}
	return models.AnalysisResult{}, err
}

func failReason(err error) string {
	var runErr *RunError
	if !errors.As(err, &runErr) {
		return err.Error()
	}
	if runErr.ChunkIndex < 0 {
		return fmt.Sprintf("%s: %v", runErr.Stage, runErr.Err)
	}
	return fmt.Sprintf("chunk %d %s: %v", runErr.ChunkIndex, runErr.Stage, runErr.Err)
}
