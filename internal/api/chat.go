package api

import (
	"errors"
	"net/http"
	"strings"

	"lexisense/internal/analysis"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type chatRequest struct {
	Text     string `json:"text"`
	Question string `json:"question"`
}

func (s *Server) handleContractChat(c *gin.Context) {
	contractID := c.Param("id")
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeErr(c, http.StatusBadRequest, "question is required")
		return
	}
	if _, ok := s.loadContract(c, contractID); !ok {
		return
	}
	text, err := s.contracts.GetDocumentText(c.Request.Context(), contractID)
	if err != nil {
		s.logger.Error("load contract text", zap.String("contract_id", contractID), zap.Error(err))
		writeErr(c, http.StatusInternalServerError, "failed to load contract text")
		return
	}
	s.answer(c, contractID, text, req.Question)
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Text) == "" {
		writeErr(c, http.StatusBadRequest, "text and question are required")
		return
	}
	s.answer(c, "", req.Text, req.Question)
}

func (s *Server) answer(c *gin.Context, contractID, text, question string) {
	ctx := analysis.WithCallScope(c.Request.Context(), contractID, -1)
	answer, err := s.chat.Answer(ctx, text, strings.TrimSpace(question))
	if err != nil {
		var nc *analysis.NotConfiguredError
		var ee *analysis.ExtractionError
		switch {
		case errors.As(err, &nc):
			writeErr(c, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &ee):
			s.logger.Warn("chat call failed", zap.String("contract_id", contractID), zap.Error(err))
			writeErr(c, http.StatusBadGateway, err.Error())
		default:
			s.logger.Error("chat failed", zap.String("contract_id", contractID), zap.Error(err))
			writeErr(c, http.StatusInternalServerError, "chat failed")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
