package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"lexisense/internal/models"
	"lexisense/internal/providers"

	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		MaxChunkChars: 80000,
		Concurrency:   1,
		CallTimeout:   2 * time.Second,
		Retry:         RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	}
}

func newTestPipeline(store Store, p providers.LLMProvider, opts Options) *Pipeline {
	return NewPipeline(store, NewExtractor(p, nil, nil), opts, nil)
}

func TestAnalyzeSingleChunkHappyPath(t *testing.T) {
	store := newMemStore()
	prov := always(validExtraction, nil)
	pipe := newTestPipeline(store, prov, fastOptions())

	got, err := pipe.Analyze(context.Background(), Request{DocumentID: "c1", Text: "This agreement is made between Acme Corp and Globex LLC."})
	require.NoError(t, err)
	require.Len(t, got.Parties, 2)
	require.Len(t, got.Dates, 1)
	require.Len(t, got.Risks, 1)
	require.Equal(t, 1, got.ChunkCount)
	require.Equal(t, "fake", got.Provider)
	require.Equal(t, "fake-1", got.Model)
	require.False(t, got.AnalyzedAt.IsZero())

	saved, ok := store.result("c1")
	require.True(t, ok)
	require.Equal(t, got, saved)
	require.Equal(t, []models.ContractStatus{models.StatusProcessing, models.StatusAnalyzed}, store.statuses("c1"))

	calls := prov.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, OpExtract, calls[0].Operation)
	require.True(t, calls[0].JSON)
	require.InDelta(t, 0.1, calls[0].Temperature, 1e-9)
	require.Equal(t, ExtractionSystemPrompt, calls[0].System)
	require.Contains(t, calls[0].Prompt, "Acme Corp and Globex LLC")
}

func TestAnalyzeMultiChunkDedupKeepsChunkOrder(t *testing.T) {
	store := newMemStore()
	prov := &scriptedProvider{respond: func(_ context.Context, req providers.GenerateRequest, _ int) (string, error) {
		var tag string
		switch {
		case strings.Contains(req.Prompt, "aaaaaaaaaa"):
			tag = "first"
			// let later chunks finish first
			time.Sleep(20 * time.Millisecond)
		case strings.Contains(req.Prompt, "bbbbbbbbbb"):
			tag = "second"
		default:
			tag = "third"
		}
		return fmt.Sprintf(`{"summary":"%s chunk","parties":[{"name":"Acme Corp","role":"Provider"},{"name":"%s party","role":"Witness"}],"dates":[],"risks":[]}`, tag, tag), nil
	}}
	opts := fastOptions()
	opts.MaxChunkChars = 10
	opts.Concurrency = 3
	pipe := newTestPipeline(store, prov, opts)

	got, err := pipe.Analyze(context.Background(), Request{DocumentID: "c2", Text: "aaaaaaaaaabbbbbbbbbbcccccccccc"})
	require.NoError(t, err)
	require.Equal(t, 3, got.ChunkCount)
	require.Equal(t, "first chunk", got.Summary)
	require.Equal(t, []models.Party{
		{Name: "Acme Corp", Role: "Provider"},
		{Name: "first party", Role: "Witness"},
		{Name: "second party", Role: "Witness"},
		{Name: "third party", Role: "Witness"},
	}, got.Parties)
	require.Len(t, prov.Calls(), 3)
}

func TestAnalyzeWithoutCredentialFailsPermanently(t *testing.T) {
	store := newMemStore()
	pipe := newTestPipeline(store, providers.NewOpenAIProvider("", "", ""), fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c3", Text: "contract"})
	require.Error(t, err)
	var nc *NotConfiguredError
	require.True(t, errors.As(err, &nc))
	require.Equal(t, "openai", nc.Provider)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	require.Equal(t, 0, runErr.ChunkIndex)
	require.Equal(t, StageExtract, runErr.Stage)

	_, saved := store.result("c3")
	require.False(t, saved)
	require.Equal(t, []models.ContractStatus{models.StatusProcessing, models.StatusFailed}, store.statuses("c3"))
	require.Contains(t, store.reason("c3"), "chunk 0 extract")
}

func TestAnalyzeNotConfiguredIsNeverRetried(t *testing.T) {
	store := newMemStore()
	prov := always("", fmt.Errorf("fake: %w", providers.ErrMissingCredential))
	pipe := newTestPipeline(store, prov, fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c4", Text: "contract"})
	require.Error(t, err)
	require.Len(t, prov.Calls(), 1)
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	store := newMemStore()
	prov := &scriptedProvider{respond: func(_ context.Context, _ providers.GenerateRequest, call int) (string, error) {
		switch call {
		case 1:
			return "", &providers.StatusError{Provider: "fake", StatusCode: 503, Message: "overloaded"}
		case 2:
			return "   ", nil
		default:
			return validExtraction, nil
		}
	}}
	pipe := newTestPipeline(store, prov, fastOptions())

	got, err := pipe.Analyze(context.Background(), Request{DocumentID: "c5", Text: "contract"})
	require.NoError(t, err)
	require.Len(t, got.Parties, 2)
	require.Len(t, prov.Calls(), 3)
	require.Equal(t, []models.ContractStatus{models.StatusProcessing, models.StatusAnalyzed}, store.statuses("c5"))
}

func TestAnalyzeGivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	prov := always("", &providers.StatusError{Provider: "fake", StatusCode: 503, Message: "overloaded"})
	pipe := newTestPipeline(store, prov, fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c6", Text: "contract"})
	require.Error(t, err)
	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, 503, ee.StatusCode)
	require.Len(t, prov.Calls(), 3)
	require.Equal(t, models.StatusFailed, store.statuses("c6")[1])
}

func TestAnalyzeReasksOnceWithSchemaReminder(t *testing.T) {
	store := newMemStore()
	prov := &scriptedProvider{respond: func(_ context.Context, _ providers.GenerateRequest, call int) (string, error) {
		if call == 1 {
			return `{"summary":"s","parties":"Acme"}`, nil
		}
		return validExtraction, nil
	}}
	pipe := newTestPipeline(store, prov, fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c7", Text: "contract"})
	require.NoError(t, err)
	calls := prov.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, OpExtractReminder, calls[1].Operation)
	require.True(t, strings.HasSuffix(calls[1].Prompt, SchemaReminder))
}

func TestAnalyzeFailsWhenReaskAlsoInvalid(t *testing.T) {
	store := newMemStore()
	prov := always(`{"summary":"s"}`, nil)
	pipe := newTestPipeline(store, prov, fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c8", Text: "contract"})
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	require.Equal(t, StageValidate, runErr.Stage)
	var sv *SchemaValidationError
	require.True(t, errors.As(err, &sv))
	require.Len(t, prov.Calls(), 2)
	_, saved := store.result("c8")
	require.False(t, saved)
	require.Contains(t, store.reason("c8"), "chunk 0 validate")
}

func TestAnalyzeLoadsStoredTextWhenRequestHasNone(t *testing.T) {
	store := newMemStore()
	store.texts["c9"] = "stored contract body"
	prov := always(validExtraction, nil)
	pipe := newTestPipeline(store, prov, fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c9"})
	require.NoError(t, err)
	require.Contains(t, prov.Calls()[0].Prompt, "stored contract body")
}

func TestRetriggerReplacesPreviousResult(t *testing.T) {
	store := newMemStore()
	prov := &scriptedProvider{respond: func(_ context.Context, _ providers.GenerateRequest, call int) (string, error) {
		return fmt.Sprintf(`{"summary":"run %d","parties":[],"dates":[],"risks":[]}`, call), nil
	}}
	pipe := newTestPipeline(store, prov, fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c10", Text: "x"})
	require.NoError(t, err)
	_, err = pipe.Analyze(context.Background(), Request{DocumentID: "c10", Text: "x"})
	require.NoError(t, err)
	saved, _ := store.result("c10")
	require.Equal(t, "run 2", saved.Summary)
}

func blockingProvider(started chan<- struct{}, release <-chan struct{}) *scriptedProvider {
	return &scriptedProvider{respond: func(ctx context.Context, _ providers.GenerateRequest, call int) (string, error) {
		if call == 1 {
			close(started)
		}
		select {
		case <-release:
			return validExtraction, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
}

func TestStartRejectsSecondTriggerWhileInFlight(t *testing.T) {
	store := newMemStore()
	started := make(chan struct{})
	release := make(chan struct{})
	pipe := newTestPipeline(store, blockingProvider(started, release), fastOptions())

	done, err := pipe.Start(context.Background(), Request{DocumentID: "c11", Text: "x"})
	require.NoError(t, err)
	<-started
	require.True(t, pipe.InFlight("c11"))

	_, err = pipe.Start(context.Background(), Request{DocumentID: "c11", Text: "x"})
	require.ErrorIs(t, err, ErrAnalysisInProgress)
	_, err = pipe.Analyze(context.Background(), Request{DocumentID: "c11", Text: "x"})
	require.ErrorIs(t, err, ErrAnalysisInProgress)

	close(release)
	out := <-done
	require.NoError(t, out.Err)
	require.Equal(t, models.StatusAnalyzed, out.Status)
	require.NotNil(t, out.Result)
	pipe.Wait()
	require.False(t, pipe.InFlight("c11"))
}

func TestCancelledRunStaysProcessingAndReleasesSlot(t *testing.T) {
	store := newMemStore()
	started := make(chan struct{})
	pipe := newTestPipeline(store, blockingProvider(started, make(chan struct{})), fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done, err := pipe.Start(ctx, Request{DocumentID: "c12", Text: "x"})
	require.NoError(t, err)
	<-started
	cancel()

	out := <-done
	require.ErrorIs(t, out.Err, context.Canceled)
	require.ErrorIs(t, out.Err, ErrAnalysisCancelled)
	require.Equal(t, models.StatusProcessing, out.Status)
	pipe.Wait()

	require.Equal(t, []models.ContractStatus{models.StatusProcessing}, store.statuses("c12"))
	_, saved := store.result("c12")
	require.False(t, saved)
	require.False(t, pipe.InFlight("c12"))
}

func TestStartReportsFailedWhenEveryAttemptTimesOut(t *testing.T) {
	store := newMemStore()
	opts := fastOptions()
	opts.CallTimeout = 5 * time.Millisecond
	prov := blockingProvider(make(chan struct{}), make(chan struct{}))
	pipe := newTestPipeline(store, prov, opts)

	done, err := pipe.Start(context.Background(), Request{DocumentID: "c14", Text: "x"})
	require.NoError(t, err)
	out := <-done
	pipe.Wait()

	require.Error(t, out.Err)
	require.NotErrorIs(t, out.Err, ErrAnalysisCancelled)
	var ee *ExtractionError
	require.ErrorAs(t, out.Err, &ee)
	require.Equal(t, models.StatusFailed, out.Status)
	require.Len(t, prov.Calls(), 3)
	require.Equal(t, []models.ContractStatus{models.StatusProcessing, models.StatusFailed}, store.statuses("c14"))
	require.Contains(t, store.reason("c14"), "chunk 0 extract")
}

func TestSaveFailureMarksFailedWithoutResult(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	pipe := newTestPipeline(store, always(validExtraction, nil), fastOptions())

	_, err := pipe.Analyze(context.Background(), Request{DocumentID: "c15", Text: "x"})
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	require.Equal(t, StagePersist, runErr.Stage)
	_, saved := store.result("c15")
	require.False(t, saved)
	require.Equal(t, []models.ContractStatus{models.StatusProcessing, models.StatusFailed}, store.statuses("c15"))
	require.Contains(t, store.reason("c15"), "persist: save analysis: disk full")
}

func TestStartRecoversPanicAndMarksFailed(t *testing.T) {
	store := newMemStore()
	store.panicOnProc = true
	pipe := newTestPipeline(store, always(validExtraction, nil), fastOptions())

	done, err := pipe.Start(context.Background(), Request{DocumentID: "c13", Text: "x"})
	require.NoError(t, err)
	out := <-done
	require.Error(t, out.Err)
	require.Equal(t, models.StatusFailed, out.Status)
	pipe.Wait()
	require.Equal(t, []models.ContractStatus{models.StatusFailed}, store.statuses("c13"))
	require.Contains(t, store.reason("c13"), "store exploded")
}

func TestOptionsClampConcurrency(t *testing.T) {
	require.Equal(t, 4, Options{Concurrency: 12}.normalized().Concurrency)
	require.Equal(t, 1, Options{}.normalized().Concurrency)
	require.Equal(t, 80000, Options{}.normalized().MaxChunkChars)
}
