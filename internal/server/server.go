// Package server exposes the operational HTTP surface: health probes,
// Prometheus metrics and the audit query endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/audit"
	"github.com/finstream/finstream/pkg/models"
)

// BusHealth reports whether the message bus is reachable.
// *messaging.HealthChecker implements it.
type BusHealth interface {
	Check(ctx context.Context) error
}

// AuditReader exposes the audit query surface. Only the audit service wires
// one; other services serve probes and metrics alone.
type AuditReader interface {
	GetEvents(filter audit.Filter) []models.AuditEvent
}

// Server is the per-service HTTP listener.
type Server struct {
	service string
	bus     BusHealth
	reader  AuditReader
	logger  *zap.Logger
	http    *http.Server
}

// New creates the server. reader may be nil for services without an audit
// store.
func New(service string, port int, bus BusHealth, reader AuditReader, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		bus:     bus,
		reader:  reader,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/live", s.handleLive)
	router.GET("/ready", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if reader != nil {
		router.GET("/audit/events", s.handleAuditEvents)
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	busStatus := "connected"
	if err := s.bus.Check(c.Request.Context()); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
		busStatus = "disconnected"
		s.logger.Warn("health check failed", zap.Error(err))
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   s.service,
		"kafka":     busStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) handleReady(c *gin.Context) {
	if err := s.bus.Check(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleAuditEvents(c *gin.Context) {
	filter := audit.Filter{
		EventType: c.Query("eventType"),
		Service:   c.Query("service"),
		UserID:    c.Query("userId"),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		filter.To = t
	}

	events := s.reader.GetEvents(filter)
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
