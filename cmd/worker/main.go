package main

import (
	"context"
	"errors"
	"log"
	"time"

	"lexisense/internal/activities"
	"lexisense/internal/app"
	"lexisense/internal/config"
	"lexisense/internal/logging"
	"lexisense/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.PostgresURL == "" {
		logger.Fatal("worker requires postgres", zap.Error(errors.New("LEXISENSE_POSTGRES_URL is empty")))
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build runtime", zap.Error(err))
	}
	defer rt.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: config.MaxChunkConcurrency * 4,
	})
	workflows.Register(w)
	a := activities.New(rt.Contracts, rt.Extractor, time.Duration(cfg.ExtractTimeoutSecs)*time.Second, logger.Named("activities"))
	activities.Register(w, a)

	logger.Info("lexisense worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("llm_provider", rt.Provider.Raw))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
