package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/app"
	"github.com/aoa-dev/aoa/internal/domain/predictor"
)

// PredictHandler serves the /predict* endpoints (§6).
type PredictHandler struct {
	svc    *app.Service
	logger *zap.Logger
}

// NewPredictHandler builds a PredictHandler.
func NewPredictHandler(svc *app.Service, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{svc: svc, logger: logger}
}

// Predict handles GET /predict. Besides the §6 `keywords` csv parameter,
// it accepts an optional free-text `prompt` parameter and runs it through
// C4's keyword-extraction algorithm (§4.4, §2's "prompt text → C4 (keyword
// extract → candidate scoring)") — the agent-facing prompt-submit path
// that `aoa-gateway.py --event=prompt` maps onto (SPEC_FULL §3.1).
// Explicit `keywords` take precedence when both are given.
func (h *PredictHandler) Predict(c *gin.Context) {
	keywords := queryCSV(c, "keywords")
	if len(keywords) == 0 {
		if prompt := c.Query("prompt"); prompt != "" {
			keywords = predictor.ExtractKeywords(prompt)
		}
	}
	limit := queryInt(c, "limit", 3)
	snippetLines := queryInt(c, "snippet_lines", 15)

	candidates := h.svc.Predict(keywords, limit, snippetLines)
	files := make([]gin.H, 0, len(candidates))
	for _, cand := range candidates {
		files = append(files, gin.H{
			"path":       cand.Path,
			"confidence": cand.Confidence,
			"snippet":    cand.Snippet,
		})
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// logPredictionRequest mirrors the §6 POST /predict/log body.
type logPredictionRequest struct {
	SessionID      string   `json:"session_id" binding:"required"`
	PredictedFiles []string `json:"predicted_files"`
	Tags           []string `json:"tags"`
	TriggerFile    string   `json:"trigger_file"`
	Confidence     float64  `json:"confidence"`
}

// Log handles POST /predict/log.
func (h *PredictHandler) Log(c *gin.Context) {
	var req logPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.svc.LogPrediction(c.Request.Context(), req.SessionID, req.TriggerFile, req.PredictedFiles, req.Tags, req.Confidence)
	c.Status(http.StatusNoContent)
}

// checkPredictionRequest mirrors the §6 POST /predict/check body.
type checkPredictionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	ProjectID string `json:"project_id"`
	File      string `json:"file" binding:"required"`
}

// Check handles POST /predict/check.
func (h *PredictHandler) Check(c *gin.Context) {
	var req checkPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.svc.CheckPrediction(c.Request.Context(), req.SessionID, req.File)
	c.Status(http.StatusNoContent)
}

// MetricsHandler serves GET /metrics.
type MetricsHandler struct {
	svc *app.Service
}

// NewMetricsHandler builds a MetricsHandler.
func NewMetricsHandler(svc *app.Service) *MetricsHandler {
	return &MetricsHandler{svc: svc}
}

// Metrics handles GET /metrics.
func (h *MetricsHandler) Metrics(c *gin.Context) {
	m := h.svc.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"rolling": gin.H{
			"hit_at_5_pct": m.HitAt5Pct,
			"evaluated":    m.Evaluated,
			"calibrating":  m.Calibrating,
		},
	})
}
