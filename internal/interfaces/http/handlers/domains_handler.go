package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/app"
	"github.com/aoa-dev/aoa/internal/domain/learner"
)

// DomainsHandler serves the /domains* endpoints (§6).
type DomainsHandler struct {
	svc    *app.Service
	logger *zap.Logger
}

// NewDomainsHandler builds a DomainsHandler.
func NewDomainsHandler(svc *app.Service, logger *zap.Logger) *DomainsHandler {
	return &DomainsHandler{svc: svc, logger: logger}
}

// Stats handles GET /domains/stats.
func (h *DomainsHandler) Stats(c *gin.Context) {
	stats := h.svc.DomainStats()
	c.JSON(http.StatusOK, gin.H{
		"domains":          stats.Domains,
		"learning_pending": stats.LearningPending,
		"tune_count":       stats.TuneCount,
		"tuning_pending":   stats.TuningPending,
		"orphan_count":     stats.OrphanCount,
	})
}

// Orphans handles GET /domains/orphans.
func (h *DomainsHandler) Orphans(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	c.JSON(http.StatusOK, gin.H{"orphans": h.svc.Orphans(limit)})
}

// List handles GET /domains/list.
func (h *DomainsHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	c.JSON(http.StatusOK, gin.H{"domains": h.svc.Domains(limit)})
}

// addDomainsRequest mirrors the §6 POST /domains/add body.
type addDomainsRequest struct {
	Project string `json:"project"`
	Domains []struct {
		Name  string   `json:"name"`
		Terms []string `json:"terms"`
	} `json:"domains" binding:"required"`
}

// Add handles POST /domains/add.
func (h *DomainsHandler) Add(c *gin.Context) {
	var req addDomainsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposed := make([]learner.ProposedDomain, 0, len(req.Domains))
	for _, d := range req.Domains {
		proposed = append(proposed, learner.ProposedDomain{Name: d.Name, Terms: d.Terms})
	}

	if err := h.svc.AddDomains(proposed); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted": len(proposed)})
}

// Learned handles POST /domains/learned.
func (h *DomainsHandler) Learned(c *gin.Context) {
	h.svc.ClearLearningPending()
	c.Status(http.StatusNoContent)
}

// TuneMath handles POST /domains/tune/math.
func (h *DomainsHandler) TuneMath(c *gin.Context) {
	result := h.svc.RunMathTuning()
	c.JSON(http.StatusOK, result)
}
