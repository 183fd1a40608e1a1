package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiProvider struct {
	model  string
	client *genai.Client
}

// NewGeminiProvider returns a provider that fails every call with
// ErrMissingCredential when apiKey is empty.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	p := &GeminiProvider{model: model}
	if strings.TrimSpace(apiKey) == "" {
		return p, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	p.client = client
	return p, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model}
	if g.client == nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini: %w", ErrMissingCredential)
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return GenerateResponse{}, info, &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return GenerateResponse{}, info, fmt.Errorf("gemini generate request failed: %w", err)
	}
	return GenerateResponse{Text: resp.Text()}, info, nil
}
