package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider calls the Chat Completions API through the official SDK.
// SDK level retries are disabled; callers own the retry policy.
type OpenAIProvider struct {
	model  string
	client *openai.Client
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	p := &OpenAIProvider{model: model}
	if strings.TrimSpace(apiKey) == "" {
		return p
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	p.client = &client
	return p
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.model}
	if o.client == nil {
		return GenerateResponse{}, info, fmt.Errorf("openai: %w", ErrMissingCredential)
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return GenerateResponse{}, info, &StatusError{Provider: "openai", StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return GenerateResponse{}, info, fmt.Errorf("openai generate request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, info, nil
	}
	return GenerateResponse{Text: resp.Choices[0].Message.Content}, info, nil
}
