// Package server exposes the solver over HTTP: a blocking JSON endpoint, a
// Server-Sent Events stream, a websocket stream, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solver/internal/domain"
	"solver/internal/logging"
	"solver/internal/observability"
	"solver/internal/orchestrator"
)

// Runner solves a query. *orchestrator.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, query domain.Query, opts ...orchestrator.RunOption) (*domain.FinalAnswer, error)
}

// Config configures the server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// RequestTimeout bounds a single run. Zero means no limit.
	RequestTimeout time.Duration
	MaxQueryBytes  int
}

// Dependencies wires the server. Runner is required.
type Dependencies struct {
	Runner   Runner
	Logger   logging.Logger
	Tracer   *observability.TracerProvider
	Gatherer prometheus.Gatherer
	// Version is reported by /healthz.
	Version string
}

// Server serves the solver API.
type Server struct {
	config     Config
	runner     Runner
	logger     logging.Logger
	tracer     *observability.TracerProvider
	version    string
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	startTime  time.Time
}

// New builds the server and its routes.
func New(config Config, deps Dependencies) (*Server, error) {
	if deps.Runner == nil {
		return nil, errors.New("server requires a runner")
	}
	if config.MaxQueryBytes <= 0 {
		return nil, fmt.Errorf("max query bytes must be positive, got %d", config.MaxQueryBytes)
	}
	logger := deps.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("server")
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.NoopTracerProvider()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observabilityMiddleware(tracer, logger))
	engine.Use(cors.New(corsConfig(config.AllowedOrigins)))

	s := &Server{
		config:  config,
		runner:  deps.Runner,
		logger:  logger,
		tracer:  tracer,
		version: deps.Version,
		engine:  engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(config.AllowedOrigins),
		},
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes(gatherer)
	return s, nil
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	solve := s.engine.Group("/solve")
	solve.Use(requestTimeout(s.config.RequestTimeout))
	{
		solve.POST("", JSONMiddleware(), s.handleSolve)
		solve.POST("/stream", JSONMiddleware(), s.handleStream)
		solve.GET("/ws", s.handleWebSocket)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening on %s", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || containsWildcard(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.AllowWebSockets = true
	return cfg
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || containsWildcard(origins) {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
