package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lexisense/internal/providers"

	"github.com/stretchr/testify/require"
)

func TestChatAnswersFromDocument(t *testing.T) {
	prov := always("  The term is two years.  ", nil)
	chat := NewChat(NewExtractor(prov, nil, nil), 0, nil)

	answer, err := chat.Answer(context.Background(), "The term of this agreement is two years.", "How long is the term?")
	require.NoError(t, err)
	require.Equal(t, "The term is two years.", answer)

	calls := prov.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, OpChat, calls[0].Operation)
	require.Equal(t, ChatSystemPrompt, calls[0].System)
	require.False(t, calls[0].JSON)
	require.Contains(t, calls[0].Prompt, "How long is the term?")
	require.NotContains(t, calls[0].Prompt, strings.TrimSpace(TruncationMarker))
}

func TestChatFallsBackOnEmptyAnswer(t *testing.T) {
	for _, empty := range []string{"", "   \n"} {
		chat := NewChat(NewExtractor(always(empty, nil), nil, nil), 0, nil)
		answer, err := chat.Answer(context.Background(), "text", "question?")
		require.NoError(t, err)
		require.Equal(t, ChatFallbackAnswer, answer)
	}
}

func TestChatTruncatesLongDocuments(t *testing.T) {
	prov := always("ok", nil)
	chat := NewChat(NewExtractor(prov, nil, nil), 10, nil)

	_, err := chat.Answer(context.Background(), "0123456789TAIL", "q")
	require.NoError(t, err)
	prompt := prov.Calls()[0].Prompt
	require.Contains(t, prompt, "0123456789"+TruncationMarker)
	require.NotContains(t, prompt, "TAIL")
}

func TestChatPropagatesErrorsWithoutRetry(t *testing.T) {
	prov := always("", &providers.StatusError{Provider: "fake", StatusCode: 503, Message: "down"})
	chat := NewChat(NewExtractor(prov, nil, nil), 0, nil)

	_, err := chat.Answer(context.Background(), "text", "q")
	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	require.Len(t, prov.Calls(), 1)
}

func TestChatWithoutCredential(t *testing.T) {
	chat := NewChat(NewExtractor(providers.NewOpenAIProvider("", "", ""), nil, nil), 0, nil)
	_, err := chat.Answer(context.Background(), "text", "q")
	var nc *NotConfiguredError
	require.True(t, errors.As(err, &nc))
}
