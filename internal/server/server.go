package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/headline-goat/abacus/internal/store"
)

// Options configures a Server. Zero values are usable.
type Options struct {
	Port    int
	Workers int
	// Token, when set, is required on every /api route.
	Token  string
	Logger *zap.Logger
}

type Server struct {
	store     store.Store
	port      int
	workers   int
	token     string
	logger    *zap.Logger
	router    *gin.Engine
	registry  *prometheus.Registry
	metrics   *metrics
	startTime time.Time
}

// New builds the API server. s may be nil, in which case the scenario
// routes report an empty library.
func New(s store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	srv := &Server{
		store:     s,
		port:      opts.Port,
		workers:   opts.Workers,
		token:     opts.Token,
		logger:    logger,
		router:    gin.New(),
		registry:  registry,
		metrics:   newMetrics(registry),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger())

	// Public endpoints
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api", s.authMiddleware())
	api.POST("/simulate", s.handleSimulate)
	api.POST("/sample-size", s.handleSampleSize)
	api.POST("/power-curve", s.handlePowerCurve)
	api.POST("/evaluate", s.handleEvaluate)
	api.POST("/bayes", s.handleBayes)
	api.POST("/correct", s.handleCorrect)
	api.POST("/sequential", s.handleSequential)
	api.GET("/scenarios", s.handleListScenarios)
	api.GET("/scenarios/:name", s.handleGetScenario)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server listening", zap.String("addr", addr))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpServer.ListenAndServe()
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.requests.WithLabelValues(route, fmt.Sprint(status)).Inc()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
