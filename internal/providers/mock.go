package providers

import (
	"context"
	"strings"
)

const mockExtraction = `{"summary":"Mock analysis of the supplied contract text.","parties":[{"name":"Mock Provider Ltd","role":"Provider"},{"name":"Mock Customer Inc","role":"Customer"}],"dates":[{"label":"Effective date","date":"2024-01-01"}],"risks":[{"severity":"low","description":"Deterministic mock output; configure a real provider for meaningful results."}]}`

// MockProvider answers deterministically without network access. It is the
// provider for local development and tests.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1"}
	if req.JSON || strings.Contains(strings.ToLower(req.Operation), "extract") {
		return GenerateResponse{Text: mockExtraction}, info, nil
	}
	return GenerateResponse{Text: "Mock answer: the document text was received but no real model is configured."}, info, nil
}
