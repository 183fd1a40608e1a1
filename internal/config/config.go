package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultMaxChunkChars = 80000
	DefaultChatMaxChars  = 100000
	MaxChunkConcurrency  = 4
)

type Config struct {
	APIAddr           string
	LogLevel          string
	LogFormat         string
	PostgresURL       string
	Dispatcher        string
	TemporalAddress   string
	TemporalTaskQueue string

	LLMProvider   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GroqAPIKey    string
	OllamaBaseURL string

	MaxChunkChars      int
	ChatMaxChars       int
	ChunkConcurrency   int
	ExtractTimeoutSecs int
	ExtractMaxAttempts int
	RetryInitialMillis int
	MaxUploadMB        int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	DataRoot       string
}

func Load() Config {
	return Config{
		APIAddr:            getenv("LEXISENSE_API_ADDR", ":8080"),
		LogLevel:           getenv("LEXISENSE_LOG_LEVEL", "info"),
		LogFormat:          getenv("LEXISENSE_LOG_FORMAT", "json"),
		PostgresURL:        os.Getenv("LEXISENSE_POSTGRES_URL"),
		Dispatcher:         getenv("LEXISENSE_DISPATCHER", "local"),
		TemporalAddress:    getenv("LEXISENSE_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:  getenv("LEXISENSE_TEMPORAL_TASK_QUEUE", "lexisense"),
		LLMProvider:        getenv("LEXISENSE_LLM_PROVIDER", "openai"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("LEXISENSE_OPENAI_BASE_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		OllamaBaseURL:      getenv("LEXISENSE_OLLAMA_BASE_URL", "http://localhost:11434"),
		MaxChunkChars:      getenvInt("LEXISENSE_MAX_CHUNK_CHARS", DefaultMaxChunkChars),
		ChatMaxChars:       getenvInt("LEXISENSE_CHAT_MAX_CHARS", DefaultChatMaxChars),
		ChunkConcurrency:   getenvInt("LEXISENSE_CHUNK_CONCURRENCY", 1),
		ExtractTimeoutSecs: getenvInt("LEXISENSE_EXTRACT_TIMEOUT_SECONDS", 45),
		ExtractMaxAttempts: getenvInt("LEXISENSE_EXTRACT_MAX_ATTEMPTS", 3),
		RetryInitialMillis: getenvInt("LEXISENSE_RETRY_INITIAL_MS", 1000),
		MaxUploadMB:        getenvInt("LEXISENSE_MAX_UPLOAD_MB", 25),
		MinioEndpoint:      os.Getenv("LEXISENSE_MINIO_ENDPOINT"),
		MinioAccessKey:     os.Getenv("LEXISENSE_MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("LEXISENSE_MINIO_SECRET_KEY"),
		MinioBucket:        getenv("LEXISENSE_MINIO_BUCKET", "contracts"),
		MinioUseSSL:        getenvBool("LEXISENSE_MINIO_USE_SSL", false),
		DataRoot:           getenv("LEXISENSE_DATA_ROOT", "./data/documents"),
	}
}

// Validate normalises tunables and rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.MaxChunkChars <= 0 {
		return fmt.Errorf("LEXISENSE_MAX_CHUNK_CHARS must be positive, got %d", c.MaxChunkChars)
	}
	if c.ChatMaxChars <= 0 {
		return fmt.Errorf("LEXISENSE_CHAT_MAX_CHARS must be positive, got %d", c.ChatMaxChars)
	}
	if c.ChunkConcurrency < 1 {
		c.ChunkConcurrency = 1
	}
	if c.ChunkConcurrency > MaxChunkConcurrency {
		c.ChunkConcurrency = MaxChunkConcurrency
	}
	if c.ExtractTimeoutSecs <= 0 {
		c.ExtractTimeoutSecs = 45
	}
	if c.ExtractMaxAttempts <= 0 {
		c.ExtractMaxAttempts = 1
	}
	if c.RetryInitialMillis <= 0 {
		c.RetryInitialMillis = 1000
	}
	switch strings.ToLower(c.Dispatcher) {
	case "local", "temporal":
		c.Dispatcher = strings.ToLower(c.Dispatcher)
	default:
		return fmt.Errorf("unsupported dispatcher %q", c.Dispatcher)
	}
	return nil
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
