package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type GenerateRequest struct {
	Operation   string  `json:"operation"`
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool `json:"json"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

// Credentials carries every provider secret explicitly; providers never read
// the environment themselves.
type Credentials struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GroqAPIKey    string
	OllamaBaseURL string
}
