// Package api wires the management handlers into a gin engine and owns the HTTP server lifecycle.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/bakame-ai/interaction-logs/internal/api/handlers/management"
	"github.com/bakame-ai/interaction-logs/internal/config"
	"github.com/bakame-ai/interaction-logs/internal/export"
	"github.com/bakame-ai/interaction-logs/internal/logging"
)

// Server is the management HTTP server.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	handler *management.Handler
	source  management.SnapshotSource

	cfg atomic.Pointer[config.Config]
}

// NewServer creates a server serving snapshots from source and exports through exporter.
func NewServer(cfg *config.Config, source management.SnapshotSource, exporter *export.Exporter) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())

	s := &Server{
		engine:  engine,
		handler: management.NewHandler(source, exporter),
		source:  source,
	}
	s.cfg.Store(cfg)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.health)

	mgmt := s.engine.Group("/v0/management")
	mgmt.Use(s.managementAuth())
	{
		mgmt.GET("/interactions", s.handler.GetInteractions)
		mgmt.GET("/interactions/options", s.handler.GetInteractionOptions)
		mgmt.GET("/interactions/row/:key", s.handler.GetInteractionByKey)
		mgmt.GET("/interactions/export.csv", s.handler.DownloadCSV)
		mgmt.GET("/interactions/export.xlsx", s.handler.DownloadXLSX)
		mgmt.POST("/interactions/export", s.handler.SaveExport)
		mgmt.GET("/feeds", s.handler.GetFeedStatus)
		mgmt.GET("/dashboard/stats", s.handler.GetDashboardStats)
		mgmt.POST("/refresh", s.handler.TriggerRefresh)
	}
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.source != nil {
		if snap := s.source.Snapshot(); snap != nil {
			resp["rows"] = len(snap.Rows)
			resp["built_at"] = snap.BuiltAt
			resp["degraded"] = snap.Degraded()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// managementAuth requires one of the configured API keys when any are set.
// The key may be sent as a bearer token or in X-Management-Key.
func (s *Server) managementAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.cfg.Load()
		if !cfg.RequiresAPIKey() {
			c.Next()
			return
		}

		provided := c.GetHeader("X-Management-Key")
		if provided == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				provided = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing management key"})
			return
		}
		if !cfg.HasAPIKey(provided) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key"})
			return
		}
		c.Next()
	}
}

// UpdateClients applies settings from a reloaded configuration that can change without a restart.
func (s *Server) UpdateClients(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.cfg.Store(cfg)
	log.WithField("api_keys", len(cfg.APIKeys)).Debug("management server settings reloaded")
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Infof("management API listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
