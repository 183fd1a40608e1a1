package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"lexisense/internal/analysis"
	"lexisense/internal/blob"
	"lexisense/internal/documents"
	"lexisense/internal/models"
	"lexisense/internal/storage"
	"lexisense/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		writeErr(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeErr(c, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	filename := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	text, err := documents.ExtractText(filename, contentType, data)
	switch {
	case errors.Is(err, util.ErrUnsupportedDocument):
		writeErr(c, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, util.ErrNoExtractableText):
		writeErr(c, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeErr(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tenant := strings.TrimSpace(c.PostForm("tenant"))
	if tenant == "" {
		tenant = strings.TrimSpace(c.GetHeader("X-Tenant-ID"))
	}
	contractID := uuid.NewString()
	key := blob.ObjectKey(tenant, contractID, filename)
	ctx := c.Request.Context()
	if err := s.blobs.Put(ctx, key, data, contentType); err != nil {
		s.logger.Error("store upload", zap.String("contract_id", contractID), zap.Error(err))
		writeErr(c, http.StatusInternalServerError, "failed to store document")
		return
	}

	contract := models.Contract{
		ContractID:  contractID,
		Tenant:      tenant,
		Filename:    filename,
		ContentType: contentType,
		ObjectKey:   key,
		Text:        text,
		Status:      models.StatusProcessing,
	}
	if err := s.contracts.CreateContract(ctx, contract); err != nil {
		s.logger.Error("create contract", zap.String("contract_id", contractID), zap.Error(err))
		writeErr(c, http.StatusInternalServerError, "failed to create contract")
		return
	}
	s.logger.Info("contract uploaded",
		zap.String("contract_id", contractID),
		zap.String("tenant", tenant),
		zap.String("filename", filename),
		zap.Int("text_chars", len([]rune(text))))

	if !s.dispatch(c, contractID) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"contract_id": contractID,
		"filename":    filename,
		"status":      models.StatusProcessing,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	contractID := c.Param("id")
	if _, ok := s.loadContract(c, contractID); !ok {
		return
	}
	if !s.dispatch(c, contractID) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"contract_id": contractID, "status": models.StatusProcessing})
}

func (s *Server) handleGetContract(c *gin.Context) {
	contractID := c.Param("id")
	contract, ok := s.loadContract(c, contractID)
	if !ok {
		return
	}
	resp := gin.H{"contract": contract}
	if pr, ok := s.dispatcher.(ProgressReporter); ok && contract.Status == models.StatusProcessing {
		if progress, err := pr.Progress(c.Request.Context(), contractID); err == nil {
			resp["progress"] = progress
		} else {
			s.logger.Debug("analysis progress unavailable", zap.String("contract_id", contractID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, resp)
}

// handleDownload streams the original upload back from the document store.
func (s *Server) handleDownload(c *gin.Context) {
	contractID := c.Param("id")
	contract, ok := s.loadContract(c, contractID)
	if !ok {
		return
	}
	if contract.ObjectKey == "" {
		writeErr(c, http.StatusNotFound, "contract has no stored document")
		return
	}
	data, err := s.blobs.Get(c.Request.Context(), contract.ObjectKey)
	if errors.Is(err, blob.ErrObjectNotFound) {
		writeErr(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("read document", zap.String("contract_id", contractID), zap.Error(err))
		writeErr(c, http.StatusInternalServerError, "failed to read document")
		return
	}
	contentType := contract.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": contract.Filename}))
	c.Data(http.StatusOK, contentType, data)
}

// dispatch triggers analysis and writes the error response itself when it
// could not.
func (s *Server) dispatch(c *gin.Context, contractID string) bool {
	err := s.dispatcher.Dispatch(c.Request.Context(), analysis.Request{DocumentID: contractID})
	if err == nil {
		return true
	}
	if errors.Is(err, analysis.ErrAnalysisInProgress) {
		writeErr(c, http.StatusConflict, err.Error())
		return false
	}
	s.logger.Error("dispatch analysis", zap.String("contract_id", contractID), zap.Error(err))
	writeErr(c, http.StatusServiceUnavailable, "analysis could not be started")
	return false
}

func (s *Server) loadContract(c *gin.Context, contractID string) (models.Contract, bool) {
	if _, err := uuid.Parse(contractID); err != nil {
		writeErr(c, http.StatusNotFound, storage.ErrNotFound.Error())
		return models.Contract{}, false
	}
	contract, err := s.contracts.GetContract(c.Request.Context(), contractID)
	if errors.Is(err, storage.ErrNotFound) {
		writeErr(c, http.StatusNotFound, err.Error())
		return models.Contract{}, false
	}
	if err != nil {
		s.logger.Error("load contract", zap.String("contract_id", contractID), zap.Error(err))
		writeErr(c, http.StatusInternalServerError, "failed to load contract")
		return models.Contract{}, false
	}
	return contract, true
}
