package ui

import (
	"github.com/gin-gonic/gin"

	"lassoc/app"
	"lassoc/internal"
)

var logger = internal.NewLogger("Server")

// Server exposes the analysis service over a JSON HTTP API.
type Server struct {
	svc    *app.AnalysisService
	router *gin.Engine
}

// NewServer wires the routes. Mode is a gin mode string ("release", "debug").
func NewServer(svc *app.AnalysisService, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	s := &Server{
		svc:    svc,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()
	return s
}

// Router returns the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves the API on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	logger.Info("listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/variables", s.handleVariables)
		api.POST("/analyses", s.handleAnalyze)
		api.GET("/analyses", s.handleListResults)
		api.GET("/analyses/:id", s.handleGetResult)
		api.POST("/permutation", s.handlePermutation)
		api.POST("/subgroups", s.handleSubgroups)
		api.POST("/discretize", s.handleDiscretize)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
