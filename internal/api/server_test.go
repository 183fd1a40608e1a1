package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"lexisense/internal/analysis"
	"lexisense/internal/blob"
	"lexisense/internal/dispatch"
	"lexisense/internal/models"
	"lexisense/internal/providers"
	"lexisense/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedProvider struct {
	text string
	err  error
}

func (f fixedProvider) Generate(context.Context, providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	return providers.GenerateResponse{Text: f.text}, providers.ProviderInfo{Name: "fixed", Model: "fixed-1"}, f.err
}

type busyDispatcher struct{}

func (busyDispatcher) Dispatch(context.Context, analysis.Request) error {
	return analysis.ErrAnalysisInProgress
}

type testServer struct {
	handler http.Handler
	store   *storage.MemoryStore
	local   *dispatch.Local
}

func newTestServer(t *testing.T, chatProvider providers.LLMProvider, d dispatch.Dispatcher) testServer {
	t.Helper()
	store := storage.NewMemoryStore(0)
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	var local *dispatch.Local
	if d == nil {
		pipe := analysis.NewPipeline(store, analysis.NewExtractor(providers.NewMockProvider(), nil, nil), analysis.Options{}, nil)
		local = dispatch.NewLocal(context.Background(), pipe)
		d = local
	}
	srv := NewServer(Deps{
		Contracts:  store,
		Blobs:      blobs,
		Dispatcher: d,
		Chat:       analysis.NewChat(analysis.NewExtractor(chatProvider, nil, nil), 0, nil),
	})
	return testServer{handler: srv.Routes(), store: store, local: local}
}

func multipartUpload(t *testing.T, filename, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("tenant", "acme"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/contracts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthzEchoesRequestID(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: "ok"}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := do(ts.handler, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestUploadAnalyzesInBackground(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: "ok"}, nil)
	rec := do(ts.handler, multipartUpload(t, "msa.txt", "text/plain", []byte("This Master Services Agreement is between Acme and Globex.")))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created struct {
		ContractID string `json:"contract_id"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ContractID)
	require.Equal(t, "processing", created.Status)

	ts.local.Wait()

	rec = do(ts.handler, httptest.NewRequest(http.MethodGet, "/api/contracts/"+created.ContractID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Contract models.Contract `json:"contract"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, models.StatusAnalyzed, got.Contract.Status)
	require.Equal(t, "acme", got.Contract.Tenant)
	require.NotNil(t, got.Contract.Analysis)
	require.Len(t, got.Contract.Analysis.Parties, 2)
}

func TestUploadRejectsUnsupportedAndEmptyDocuments(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: "ok"}, nil)
	rec := do(ts.handler, multipartUpload(t, "msa.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK")))
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = do(ts.handler, multipartUpload(t, "blank.txt", "text/plain", []byte("   ")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(ts.handler, httptest.NewRequest(http.MethodPost, "/api/contracts", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeUnknownContract(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: "ok"}, nil)
	rec := do(ts.handler, httptest.NewRequest(http.MethodPost, "/api/contracts/0b6c7a4e-8f0e-4a59-9a36-2f3b9a1c0d11/analyze", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(ts.handler, httptest.NewRequest(http.MethodGet, "/api/contracts/not-a-uuid", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeInFlightConflicts(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: "ok"}, busyDispatcher{})
	id := "0b6c7a4e-8f0e-4a59-9a36-2f3b9a1c0d11"
	require.NoError(t, ts.store.CreateContract(context.Background(), models.Contract{ContractID: id, Text: "x", Status: models.StatusProcessing}))
	rec := do(ts.handler, httptest.NewRequest(http.MethodPost, "/api/contracts/"+id+"/analyze", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestContractChat(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: "The term is two years."}, busyDispatcher{})
	id := "0b6c7a4e-8f0e-4a59-9a36-2f3b9a1c0d11"
	require.NoError(t, ts.store.CreateContract(context.Background(), models.Contract{ContractID: id, Text: "Term: two years.", Status: models.StatusAnalyzed}))

	rec := do(ts.handler, jsonRequest(http.MethodPost, "/api/contracts/"+id+"/chat", `{"question":"How long is the term?"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"answer":"The term is two years."}`, rec.Body.String())

	rec = do(ts.handler, jsonRequest(http.MethodPost, "/api/contracts/"+id+"/chat", `{"question":"  "}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRawChatFallbackAndErrors(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: ""}, busyDispatcher{})
	rec := do(ts.handler, jsonRequest(http.MethodPost, "/api/chat", `{"text":"Some contract","question":"Who signs?"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, analysis.ChatFallbackAnswer, body["answer"])

	ts = newTestServer(t, providers.NewOpenAIProvider("", "", ""), busyDispatcher{})
	rec = do(ts.handler, jsonRequest(http.MethodPost, "/api/chat", `{"text":"Some contract","question":"Who signs?"}`))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ts = newTestServer(t, fixedProvider{err: &providers.StatusError{Provider: "fixed", StatusCode: 500, Message: "boom"}}, busyDispatcher{})
	rec = do(ts.handler, jsonRequest(http.MethodPost, "/api/chat", `{"text":"Some contract","question":"Who signs?"}`))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(ts.handler, jsonRequest(http.MethodPost, "/api/chat", `{"question":"Who signs?"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadReturnsOriginalUpload(t *testing.T) {
	ts := newTestServer(t, fixedProvider{text: "ok"}, nil)
	body := []byte("This Master Services Agreement is between Acme and Globex.")
	rec := do(ts.handler, multipartUpload(t, "msa.txt", "text/plain", body))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var created struct {
		ContractID string `json:"contract_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	ts.local.Wait()

	rec = do(ts.handler, httptest.NewRequest(http.MethodGet, "/api/contracts/"+created.ContractID+"/document", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, body, rec.Body.Bytes())
	require.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename=msa.txt`, rec.Header().Get("Content-Disposition"))

	rec = do(ts.handler, httptest.NewRequest(http.MethodGet, "/api/contracts/00000000-0000-0000-0000-000000000000/document", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
