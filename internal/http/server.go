// Package http provides the container's HTTP servers: the public page server
// and the internal health and metrics server.
package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/hub"
	"github.com/xiaot623/gogo/container/internal/metrics"
)

// Server is the internal HTTP server.
type Server struct {
	echo *echo.Echo
	hub  *hub.Hub
}

// NewServer creates the internal HTTP server.
func NewServer(h *hub.Hub, m *metrics.Metrics, logger *zap.Logger) *Server {
	e := newEcho(logger)

	s := &Server{
		echo: e,
		hub:  h,
	}

	e.GET("/health", s.handleHealth)
	if reg := m.Registry(); reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"pages":  s.hub.ConnectionCount(),
		"tabs":   s.hub.TabCount(),
	})
}

// newEcho builds an echo instance with request logging through zap.
func newEcho(logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	return e
}
