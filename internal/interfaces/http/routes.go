package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aoa-dev/aoa/internal/interfaces/http/handlers"
)

// setupRoutes registers every endpoint in SPEC_FULL.md §6's interface
// table.
func setupRoutes(router *gin.Engine, intent *handlers.IntentHandler, predict *handlers.PredictHandler, metrics *handlers.MetricsHandler, domains *handlers.DomainsHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	router.POST("/intent", intent.Append)
	router.GET("/intent/recent", intent.Recent)

	router.GET("/predict", predict.Predict)
	router.POST("/predict/log", predict.Log)
	router.POST("/predict/check", predict.Check)

	router.GET("/metrics", metrics.Metrics)

	router.GET("/domains/stats", domains.Stats)
	router.GET("/domains/orphans", domains.Orphans)
	router.GET("/domains/list", domains.List)
	router.POST("/domains/add", domains.Add)
	router.POST("/domains/learned", domains.Learned)
	router.POST("/domains/tune/math", domains.TuneMath)
}
