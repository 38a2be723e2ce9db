// Package api exposes the quality-control decisions and the document
// pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/cache"
	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/gate"
	"github.com/labqc-mcp-server/internal/labdetect"
	"github.com/labqc-mcp-server/internal/middleware"
	"github.com/labqc-mcp-server/internal/pipeline"
	"github.com/labqc-mcp-server/internal/rerun"
	"github.com/labqc-mcp-server/internal/storage"
)

// Dependencies are the collaborators the handlers call into. Store and
// Cache may be nil.
type Dependencies struct {
	Logger   *logrus.Logger
	Matcher  *labdetect.Matcher
	Pipeline *pipeline.Pipeline
	Rerun    *rerun.Controller
	Gate     *gate.Gate
	Store    storage.Store
	Cache    *cache.DiagnosticsCache
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes(&cfg.Server)

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(deps.Logger))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		router:        router,
	}

	server.setupRoutes(middleware.NewClientRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))

	return server
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(limiter *middleware.ClientRateLimiter) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiter))
	{
		v1.POST("/detect", s.handleDetect)
		v1.POST("/metrics/text", s.handleTextMetrics)
		v1.POST("/quality/items", s.handleEvaluateItems)
		v1.POST("/score", s.handleScore)
		v1.POST("/reasons", s.handleReasons)
		v1.POST("/rerun/decide", s.handleRerunDecide)
		v1.POST("/gate", s.handleGate)
		v1.POST("/preflight", s.handlePreflight)
		v1.POST("/analyze", s.handleAnalyze)

		v1.GET("/diagnostics", s.handleListDiagnostics)
		v1.GET("/diagnostics/:id", s.handleGetDiagnostics)
		v1.GET("/diagnostics/:id/report", s.handleGetReport)
		v1.DELETE("/diagnostics/:id", s.handleDeleteDiagnostics)
	}
}

func maxUploadBytes(cfg *domain.ServerConfig) int64 {
	if cfg != nil && cfg.MaxUploadBytes > 0 {
		return cfg.MaxUploadBytes
	}
	return 20 << 20
}
