package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultGroqModel   = "llama-3.1-8b-instant"
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// GroqProvider supports generation via Groq's OpenAI-compatible API.
type GroqProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewGroqProvider(apiKey, model string) *GroqProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultGroqModel
	}
	return &GroqProvider{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultGroqBaseURL,
		model:   model,
		client:  &http.Client{},
	}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "groq", Model: g.model}
	if g.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("groq: %w", ErrMissingCredential)
	}
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})
	body := map[string]any{
		"model":       g.model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("encode groq request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("build groq request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("groq generate request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("read groq response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, &StatusError{Provider: "groq", StatusCode: resp.StatusCode, Message: string(raw)}
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode groq response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, info, nil
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, info, nil
}
