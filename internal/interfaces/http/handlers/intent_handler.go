package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/app"
	"github.com/aoa-dev/aoa/internal/domain/record"
	apperrors "github.com/aoa-dev/aoa/pkg/errors"
)

// IntentHandler serves the /intent endpoints (§6).
type IntentHandler struct {
	svc    *app.Service
	logger *zap.Logger
}

// NewIntentHandler builds an IntentHandler.
func NewIntentHandler(svc *app.Service, logger *zap.Logger) *IntentHandler {
	return &IntentHandler{svc: svc, logger: logger}
}

// appendIntentRequest mirrors the §6 POST /intent body.
type appendIntentRequest struct {
	SessionID    string         `json:"session_id" binding:"required"`
	ProjectID    string         `json:"project_id" binding:"required"`
	Tool         string         `json:"tool" binding:"required"`
	ToolInput    map[string]any `json:"tool_input"`
	ToolResponse any            `json:"tool_response"`
	ToolUseID    string         `json:"tool_use_id"`
}

// Append handles POST /intent.
func (h *IntentHandler) Append(c *gin.Context) {
	var req appendIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env := record.Envelope{
		ToolName:     req.Tool,
		SessionID:    req.SessionID,
		ProjectID:    req.ProjectID,
		ToolUseID:    req.ToolUseID,
		ToolInput:    req.ToolInput,
		ToolResponse: req.ToolResponse,
	}

	if _, err := h.svc.AppendIntent(c.Request.Context(), env); err != nil {
		writeAppError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Recent handles GET /intent/recent.
func (h *IntentHandler) Recent(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	projectID := c.Query("project_id")

	records, stats := h.svc.Recent(limit, projectID)
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"stats":   stats,
	})
}

func writeAppError(c *gin.Context, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	if apperrors.IsInvalidInput(err) {
		status = http.StatusBadRequest
	} else if apperrors.IsNotFound(err) {
		status = http.StatusNotFound
	} else {
		logger.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
