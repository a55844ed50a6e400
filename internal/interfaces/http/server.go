// Package http is the inbound HTTP ingress: one endpoint per agent hook
// event, plus a status endpoint, fronting the application-layer pipelines.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

// PreToolHandler runs the PreToolUse pipeline.
type PreToolHandler interface {
	Handle(ctx context.Context, ev entity.PreToolUseEvent) entity.PreToolUseResponse
}

// StopHandler runs the Stop pipeline.
type StopHandler interface {
	Handle(ctx context.Context, ev entity.StopEvent) entity.StopResponse
}

// LifecycleHandler runs SessionStart/SessionEnd/Notification.
type LifecycleHandler interface {
	HandleSessionStart(ctx context.Context, ev entity.LifecycleEvent) entity.LifecycleEvent
	HandleSessionEnd(ctx context.Context, ev entity.LifecycleEvent) entity.LifecycleEvent
	HandleNotification(ctx context.Context, ev entity.LifecycleEvent) entity.LifecycleEvent
}

// Server is the HTTP front door for the orchestrator.
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

// Deps are the application-layer handlers this server dispatches to.
type Deps struct {
	PreTool   PreToolHandler
	Stop      StopHandler
	Lifecycle LifecycleHandler
	Registry  service.SessionRegistry
	Rules     service.RulesWatcher
	StartedAt time.Time
}

// NewServer builds the gin router and wraps it in an *http.Server.
func NewServer(cfg Config, deps Deps, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	setupRoutes(router, deps, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the listener, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, deps Deps, logger *zap.Logger) {
	hooks := router.Group("/hooks")
	{
		hooks.POST("/PreToolUse", preToolHandler(deps.PreTool, logger))
		hooks.POST("/Stop", stopHandler(deps.Stop, logger))
		hooks.POST("/SessionStart", lifecycleHandler(deps.Lifecycle.HandleSessionStart, logger))
		hooks.POST("/SessionEnd", lifecycleHandler(deps.Lifecycle.HandleSessionEnd, logger))
		hooks.POST("/Notification", lifecycleHandler(deps.Lifecycle.HandleNotification, logger))
	}

	router.GET("/status", statusHandler(deps))
}

func preToolHandler(h PreToolHandler, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev entity.PreToolUseEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp := h.Handle(c.Request.Context(), ev)
		c.JSON(http.StatusOK, resp)
	}
}

func stopHandler(h StopHandler, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev entity.StopEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp := h.Handle(c.Request.Context(), ev)
		c.JSON(http.StatusOK, resp)
	}
}

func lifecycleHandler(fn func(ctx context.Context, ev entity.LifecycleEvent) entity.LifecycleEvent, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev entity.LifecycleEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp := fn(c.Request.Context(), ev)
		c.JSON(http.StatusOK, resp)
	}
}

// statusResponse supplements spec's {sessions, count} with uptime and the
// loaded rules version, both derivable from state the registry and rules
// watcher already own.
type statusResponse struct {
	Sessions      []entity.SessionInfo `json:"sessions"`
	Count         int                  `json:"count"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	RulesVersion  int                  `json:"rules_version"`
}

func statusHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := deps.Registry.GetAll()
		resp := statusResponse{
			Sessions:      sessions,
			Count:         len(sessions),
			UptimeSeconds: int64(time.Since(deps.StartedAt).Seconds()),
		}
		if deps.Rules != nil {
			resp.RulesVersion = deps.Rules.Current().Version()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ginLogger is structured request logging via zap, matching the teacher's
// middleware shape.
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
