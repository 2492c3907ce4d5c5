package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avdataccess/internal/access"
	"github.com/vyrodovalexey/avdataccess/internal/health"
	"github.com/vyrodovalexey/avdataccess/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Config holds HTTP server settings.
type Config struct {
	// ListenAddr is the host:port to bind.
	ListenAddr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxRequestBodySize limits inbound request bodies. Zero disables the
	// limit.
	MaxRequestBodySize int64

	// MetricsEnabled exposes Prometheus metrics on MetricsPath.
	MetricsEnabled bool
	MetricsPath    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":8080",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		MaxRequestBodySize: 10 << 20,
		MetricsPath:        "/metrics",
	}
}

// Server is the inbound HTTP API for the data access service.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     Config
	access     access.Service
	checker    *health.Checker
	logger     observability.Logger
}

// New creates the HTTP server and registers all routes.
func New(cfg Config, svc access.Service, checker *health.Checker, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultConfig().ListenAddr
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.Use(Recovery(logger))
	engine.Use(RequestID())
	engine.Use(Logging(logger))

	s := &Server{
		engine:  engine,
		config:  cfg,
		access:  svc,
		checker: checker,
		logger:  logger,
	}

	if cfg.MaxRequestBodySize > 0 {
		engine.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxRequestBodySize)
			c.Next()
		})
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	rpc := s.engine.Group("/rpc/DataAccessService")
	rpc.POST("/readLocation", s.handleReadLocation)
	rpc.POST("/writeLocation", s.handleWriteLocation)
	rpc.POST("/writeAccessToken", s.handleWriteAccessToken)
	rpc.POST("/deleteLocation", s.handleDeleteLocation)

	if s.checker != nil {
		s.engine.GET("/health/live", gin.WrapF(s.checker.LivenessHandler()))
		s.engine.GET("/health/ready", gin.WrapF(s.checker.ReadinessHandler()))
	}

	if s.config.MetricsEnabled {
		path := s.config.MetricsPath
		if path == "" {
			path = DefaultConfig().MetricsPath
		}
		s.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}
}

// Engine returns the underlying gin engine. Used in tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the HTTP server until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP server",
		observability.String("address", s.config.ListenAddr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
