package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/lingoloop/notifier/internal/logger"
)

// StatsFunc reports live listener state for the health endpoint
type StatsFunc func() map[string]interface{}

// NewRouter builds the gin engine serving /metrics and /health
func NewRouter(serviceName string, stats StatsFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "healthy",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if stats != nil {
			body["listener"] = stats()
		}
		c.JSON(http.StatusOK, body)
	})
	return r
}

// Server runs the metrics endpoint alongside the watcher
type Server struct {
	srv *http.Server
}

// NewServer binds the router to addr
func NewServer(addr, serviceName string, stats StatsFunc) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(serviceName, stats),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		logger.Info("Metrics server listening", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr("Metrics server stopped", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
