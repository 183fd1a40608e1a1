// Package app wires configuration into the stores and model clients shared by
// the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"lexisense/internal/analysis"
	"lexisense/internal/api"
	"lexisense/internal/blob"
	"lexisense/internal/config"
	"lexisense/internal/providers"
	"lexisense/internal/storage"

	"go.uber.org/zap"
)

type Runtime struct {
	Contracts api.ContractStore
	Recorder  analysis.CallRecorder
	Extractor *analysis.Extractor
	Provider  providers.ProviderRef
	db        *storage.DB
}

// Build opens Postgres when configured (falling back to the in-memory store)
// and constructs the model provider. A provider without credentials is not
// an error: its calls fail with NotConfiguredError.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{Provider: providers.ParseProviderRef(cfg.LLMProvider)}
	if cfg.PostgresURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		db, err := storage.NewDB(dbCtx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(dbCtx); err != nil {
			db.Close()
			return nil, err
		}
		rt.db = db
		rt.Contracts = storage.NewContractRepo(db)
		rt.Recorder = storage.NewLLMAuditRepo(db)
	} else {
		logger.Warn("LEXISENSE_POSTGRES_URL not set, using in-memory contract store")
		rt.Contracts = storage.NewMemoryStore(1000)
	}

	p, err := providers.New(ctx, rt.Provider, providers.Credentials{
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GroqAPIKey:    cfg.GroqAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build llm provider: %w", err)
	}
	rt.Extractor = analysis.NewExtractor(p, rt.Recorder, logger.Named("extractor"))
	return rt, nil
}

func (r *Runtime) Persistent() bool {
	return r.db != nil
}

func (r *Runtime) Close() {
	r.db.Close()
}

// BlobStore picks MinIO when an endpoint is configured, otherwise a local
// directory.
func BlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if cfg.MinioEndpoint == "" {
		ls, err := blob.NewLocalStore(cfg.DataRoot)
		if err != nil {
			return nil, err
		}
		return ls, nil
	}
	s, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
