package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"baseroute/internal/database"
	"baseroute/internal/model"
	"baseroute/internal/registry"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer ranks fee-tier routes for a pair.
type Analyzer interface {
	Analyze(ctx context.Context, from, to, amount string) (*model.AnalysisResult, error)
}

// Config holds the HTTP surface options.
type Config struct {
	CORSOrigins []string
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// Server wires the HTTP handlers to the engine and the trade store.
type Server struct {
	logger   *slog.Logger
	registry *registry.Registry
	analyzer Analyzer
	repo     database.Repository
	router   *gin.Engine
	now      func() time.Time
}

// NewServer creates a new Server and registers its routes.
func NewServer(logger *slog.Logger, reg *registry.Registry, analyzer Analyzer, repo database.Repository, cfg Config) *Server {
	s := &Server{
		logger:   logger,
		registry: reg,
		analyzer: analyzer,
		repo:     repo,
		router:   gin.New(),
		now:      time.Now,
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, requestIDHeader)
	corsConfig.ExposeHeaders = []string{requestIDHeader}

	s.router.Use(gin.Recovery(), requestID(), requestLogger(logger), cors.New(corsConfig))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	api.GET("/tokens", s.listTokens)
	api.GET("/pairs", s.listPairs)
	api.POST("/analyze", s.analyze)
	api.POST("/trades", s.createTrade)
	api.GET("/trades", s.listTrades)
	api.GET("/trades/:tradeId", s.getTrade)
	api.GET("/trades/:tradeId/report", s.tradeReport)

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
