package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/executor"
	httphandlers "github.com/codeforge/execd/internal/http"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/monitoring"
	"github.com/codeforge/execd/internal/providers/environment"
	"github.com/codeforge/execd/internal/providers/python"
	"github.com/codeforge/execd/internal/providers/shell"
	"github.com/codeforge/execd/internal/providers/workspace"
	"github.com/codeforge/execd/internal/service"
	"github.com/codeforge/execd/internal/session"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	router   *gin.Engine
	sessions *session.Manager
	registry *service.Registry
	srv      *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	sessions := session.NewManager(cfg.Sessions, logger)
	exec := executor.New(logger)

	promRegistry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(promRegistry)
	metrics.ObserveSessions(promRegistry,
		func() float64 { return float64(sessions.Count()) },
		func() float64 { return float64(sessions.GetStats().Evictions) },
		func() float64 { return float64(sessions.GetStats().Expiries) },
	)

	registry := service.NewRegistry()
	providers := []service.Provider{
		python.NewProvider(cfg, sessions, exec, metrics, logger),
		shell.NewProvider(cfg, sessions, exec, metrics, logger),
		workspace.NewProvider(cfg, sessions, logger),
		environment.NewProvider(cfg, sessions, exec, logger),
	}
	for _, p := range providers {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("registering provider: %w", err)
		}
	}
	logger.Info("service providers registered", zap.Int("count", len(providers)))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(monitoring.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	handlers := httphandlers.NewHandlers(registry, sessions, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/services", handlers.ListServices)
	router.POST("/services/execute", handlers.ExecuteService)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.DeleteSession)
	router.GET("/metrics", monitoring.Handler(promRegistry))

	return &Server{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		sessions: sessions,
		registry: registry,
	}, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server listening", zap.String("addr", addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the server down gracefully and destroys all session
// workspaces.
func (s *Server) Close() error {
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}

	s.sessions.Shutdown()
	_ = s.logger.Sync()
	return nil
}
