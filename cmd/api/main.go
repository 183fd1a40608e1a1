package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"lexisense/internal/analysis"
	"lexisense/internal/api"
	"lexisense/internal/app"
	"lexisense/internal/config"
	"lexisense/internal/dispatch"
	"lexisense/internal/logging"
	"lexisense/internal/workflows"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	blobs, err := app.BlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}

	// Background runs must survive request completion but stop on shutdown.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	var (
		dispatcher dispatch.Dispatcher
		local      *dispatch.Local
	)
	switch cfg.Dispatcher {
	case "temporal":
		if !rt.Persistent() {
			return errors.New("temporal dispatcher requires LEXISENSE_POSTGRES_URL")
		}
		tc, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			return fmt.Errorf("dial temporal: %w", err)
		}
		defer tc.Close()
		dispatcher = dispatch.NewTemporal(tc, cfg.TemporalTaskQueue, workflows.AnalyzeContractInput{
			MaxChunkChars: cfg.MaxChunkChars,
			Concurrency:   cfg.ChunkConcurrency,
			MaxAttempts:   cfg.ExtractMaxAttempts,
		}, logger.Named("dispatch"))
	default:
		pipe := analysis.NewPipeline(rt.Contracts, rt.Extractor, analysis.OptionsFromConfig(cfg), logger.Named("pipeline"))
		local = dispatch.NewLocal(runCtx, pipe)
		dispatcher = local
	}

	srv := api.NewServer(api.Deps{
		Contracts:      rt.Contracts,
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Chat:           analysis.NewChat(rt.Extractor, cfg.ChatMaxChars, logger.Named("chat")),
		Logger:         logger.Named("http"),
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
	})

	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lexisense api listening",
			zap.String("addr", cfg.APIAddr),
			zap.String("dispatcher", cfg.Dispatcher),
			zap.String("llm_provider", rt.Provider.Raw),
			zap.Bool("postgres", rt.Persistent()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// In-flight local runs are cancelled and stay in processing for a retrigger.
	cancelRuns()
	if local != nil {
		local.Wait()
	}
	logger.Info("api exited gracefully")
	return nil
}
