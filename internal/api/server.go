package api

import (
	"context"
	"net/http"

	"lexisense/internal/analysis"
	"lexisense/internal/blob"
	"lexisense/internal/dispatch"
	"lexisense/internal/models"
	"lexisense/internal/workflows"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContractStore is the persistence the HTTP surface needs on top of what the
// pipeline uses.
type ContractStore interface {
	analysis.Store
	CreateContract(ctx context.Context, c models.Contract) error
	GetContract(ctx context.Context, contractID string) (models.Contract, error)
}

// ProgressReporter is implemented by dispatchers that can report per-chunk
// progress of a running analysis.
type ProgressReporter interface {
	Progress(ctx context.Context, contractID string) (workflows.AnalysisProgress, error)
}

type Deps struct {
	Contracts      ContractStore
	Blobs          blob.Store
	Dispatcher     dispatch.Dispatcher
	Chat           *analysis.Chat
	Logger         *zap.Logger
	MaxUploadBytes int64
}

type Server struct {
	contracts      ContractStore
	blobs          blob.Store
	dispatcher     dispatch.Dispatcher
	chat           *analysis.Chat
	logger         *zap.Logger
	maxUploadBytes int64
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	return &Server{
		contracts:      d.Contracts,
		blobs:          d.Blobs,
		dispatcher:     d.Dispatcher,
		chat:           d.Chat,
		logger:         logger,
		maxUploadBytes: maxUpload,
	}
}

func (s *Server) Routes() http.Handler {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(s.logger))
	router.Use(RequestLogger(s.logger))

	router.GET("/healthz", s.handleHealthz)
	api := router.Group("/api")
	{
		api.POST("/contracts", s.handleUpload)
		api.GET("/contracts/:id", s.handleGetContract)
		api.GET("/contracts/:id/document", s.handleDownload)
		api.POST("/contracts/:id/analyze", s.handleAnalyze)
		api.POST("/contracts/:id/chat", s.handleContractChat)
		api.POST("/chat", s.handleChat)
	}
	return router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeErr(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg, "request_id": GetRequestID(c)})
}
