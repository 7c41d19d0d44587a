// Package http implements C7, the HTTP Facade: a thin gin request/response
// layer over the orchestrating app.Service, adapted from the teacher's
// interfaces/http/server.go.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/app"
	"github.com/aoa-dev/aoa/internal/interfaces/http/handlers"
)

// Server wraps the gin engine and its *http.Server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config configures the listener.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// NewServer builds the gin engine, registers every §6 route against svc,
// and wraps it in an *http.Server bound to cfg.Host:cfg.Port.
func NewServer(cfg Config, svc *app.Service, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	intentHandler := handlers.NewIntentHandler(svc, logger)
	predictHandler := handlers.NewPredictHandler(svc, logger)
	metricsHandler := handlers.NewMetricsHandler(svc)
	domainsHandler := handlers.NewDomainsHandler(svc, logger)

	setupRoutes(router, intentHandler, predictHandler, metricsHandler, domainsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Start launches the listener in the background; errors land in the log,
// matching §5's "never blocks the agent" posture for the capture side.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop drains in-flight handlers with ctx's deadline (§5's ~5 second bound).
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// ginLogger mirrors the teacher's structured request logging middleware.
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
