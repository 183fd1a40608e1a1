package analysis

import (
	"context"
	"errors"
	"strings"

	"lexisense/internal/config"
	"lexisense/internal/providers"
	"lexisense/internal/util"

	"go.uber.org/zap"
)

// Chat answers free-form questions about one document. It never touches
// document state and never retries.
type Chat struct {
	extractor *Extractor
	maxChars  int
	logger    *zap.Logger
}

func NewChat(extractor *Extractor, maxChars int, logger *zap.Logger) *Chat {
	if maxChars <= 0 {
		maxChars = config.DefaultChatMaxChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{extractor: extractor, maxChars: maxChars, logger: logger}
}

func (c *Chat) Answer(ctx context.Context, documentText, question string) (string, error) {
	text, truncated := util.TruncateRunes(documentText, c.maxChars)
	if truncated {
		text += TruncationMarker
		c.logger.Debug("chat context truncated", zap.Int("max_chars", c.maxChars))
	}
	answer, _, err := c.extractor.Complete(ctx, providers.GenerateRequest{
		Operation:   OpChat,
		System:      ChatSystemPrompt,
		Prompt:      buildChatPrompt(text, question),
		Temperature: ExtractionTemperature,
	})
	if err != nil {
		var empty *EmptyResponseError
		if errors.As(err, &empty) {
			return ChatFallbackAnswer, nil
		}
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
