package providers

import (
	"context"
	"fmt"
)

// New builds the provider named by ref. A provider whose credential is
// missing is still returned; its calls fail with ErrMissingCredential so the
// host process keeps running with extraction and chat disabled.
func New(ctx context.Context, ref ProviderRef, creds Credentials) (LLMProvider, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(creds.OpenAIAPIKey, creds.OpenAIBaseURL, ref.Model), nil
	case "gemini":
		return NewGeminiProvider(ctx, creds.GeminiAPIKey, ref.Model)
	case "groq":
		return NewGroqProvider(creds.GroqAPIKey, ref.Model), nil
	case "ollama":
		return NewOllamaProvider(creds.OllamaBaseURL, ref.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
