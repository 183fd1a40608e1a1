package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEXISENSE_MAX_CHUNK_CHARS", "")
	t.Setenv("LEXISENSE_CHAT_MAX_CHARS", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg := Load()
	require.Equal(t, DefaultMaxChunkChars, cfg.MaxChunkChars)
	require.Equal(t, DefaultChatMaxChars, cfg.ChatMaxChars)
	require.Equal(t, "openai", cfg.LLMProvider)
	require.Empty(t, cfg.OpenAIAPIKey)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LEXISENSE_MAX_CHUNK_CHARS", "1000")
	t.Setenv("LEXISENSE_CHUNK_CONCURRENCY", "9")
	t.Setenv("LEXISENSE_MINIO_USE_SSL", "true")
	t.Setenv("LEXISENSE_EXTRACT_MAX_ATTEMPTS", "not-a-number")
	cfg := Load()
	require.Equal(t, 1000, cfg.MaxChunkChars)
	require.True(t, cfg.MinioUseSSL)
	require.Equal(t, 3, cfg.ExtractMaxAttempts)
	require.NoError(t, cfg.Validate())
	require.Equal(t, MaxChunkConcurrency, cfg.ChunkConcurrency)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Load()
	cfg.MaxChunkChars = 0
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Dispatcher = "carrier-pigeon"
	require.Error(t, cfg.Validate())
}
