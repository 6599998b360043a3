// Package server exposes the extraction service over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wehubfusion/Ariadne/pkg/extract"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Server serves /notion/page, /notion/database and /notion/search
type Server struct {
	service *extract.Service
	logger  *zap.Logger
	router  *gin.Engine
	http    *http.Server
}

// New creates a server listening on addr
func New(service *extract.Service, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		service: service,
		logger:  logger,
		router:  gin.New(),
	}
	s.router.Use(s.requestID(), s.logging(), gin.CustomRecovery(s.recovery))
	s.RegisterRoutes(s.router.Group("/"))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// RegisterRoutes registers the extraction routes on router
func (s *Server) RegisterRoutes(router *gin.RouterGroup) {
	notion := router.Group("/notion")
	{
		notion.GET("/page", s.page)
		notion.POST("/page", s.page)
		notion.GET("/database", s.database)
		notion.POST("/database", s.database)
		notion.GET("/search", s.search)
		notion.POST("/search", s.search)
	}
	router.GET("/healthz", s.health)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) page(c *gin.Context) {
	_, raw := c.GetQuery("raw")
	_, title := c.GetQuery("title")

	result, err := s.service.Page(c.Request.Context(), extract.PageRequest{
		Workspace: c.Query("workspace"),
		ID:        c.Query("id"),
		Raw:       raw,
		Title:     title,
	})
	s.respond(c, result, err)
}

func (s *Server) database(c *gin.Context) {
	_, raw := c.GetQuery("raw")

	result, err := s.service.Database(c.Request.Context(), extract.DatabaseRequest{
		Workspace: c.Query("workspace"),
		ID:        c.Query("id"),
		Raw:       raw,
		Title:     c.Query("title"),
	})
	s.respond(c, result, err)
}

func (s *Server) search(c *gin.Context) {
	_, raw := c.GetQuery("raw")

	result, err := s.service.Search(c.Request.Context(), extract.SearchRequest{
		Workspace: c.Query("workspace"),
		Query:     c.Query("query"),
		Raw:       raw,
		Password:  c.Query("password"),
	})
	s.respond(c, result, err)
}

func (s *Server) health(c *gin.Context) {
	gateway := s.service.Gateway()
	metrics := gateway.GetMetrics()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active":          gateway.Active(),
		"queued":          gateway.Queued(),
		"max_concurrent":  gateway.MaxConcurrent(),
		"acquired":        metrics.TotalAcquired,
		"failed":          metrics.TotalFailed,
		"peak_concurrent": metrics.PeakConcurrent,
		"avg_wait_ms":     gateway.GetAverageWaitTime().Milliseconds(),
		"circuit_breaker": gateway.GetCircuitBreakerState(),
	})
}

func (s *Server) respond(c *gin.Context, result extract.Result, err error) {
	if err != nil {
		status := extract.StatusCode(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("Error handling request",
				zap.String("request_id", extract.RequestID(c.Request.Context())),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			sentry.CaptureException(err)
		}
		c.String(status, extract.ErrorMessage(err))
		return
	}

	if result.Raw {
		c.JSON(http.StatusOK, gin.H{"object": "list", "results": result.Items})
		return
	}
	c.String(http.StatusOK, result.Content)
}

// requestID propagates X-Request-ID, generating one when absent
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(extract.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			zap.String("request_id", extract.RequestID(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) recovery(c *gin.Context, recovered any) {
	err := fmt.Errorf("panic recovered: %v", recovered)
	s.logger.Error("Panic while handling request",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	sentry.CaptureException(err)
	c.String(http.StatusInternalServerError, extract.MsgInternal)
	c.Abort()
}
