package http

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/config"
)

// ContainerPath is where the host page is served.
const ContainerPath = "/iframe-container.html"

//go:embed assets
var assets embed.FS

// BridgeHandler accepts bridge WebSocket connections.
type BridgeHandler interface {
	HandleWebSocket(c echo.Context) error
}

// PageServer serves the host page, its bridge script and the bridge socket.
type PageServer struct {
	echo   *echo.Echo
	page   []byte
	bridge []byte
}

type pageData struct {
	Title            string
	AgentEmbeddedURL string
	WSPath           string
}

// NewPageServer renders the host page once from cfg and registers routes.
func NewPageServer(cfg *config.Config, ws BridgeHandler, logger *zap.Logger) (*PageServer, error) {
	tmpl, err := template.ParseFS(assets, "assets/iframe-container.html")
	if err != nil {
		return nil, err
	}
	var page bytes.Buffer
	if err := tmpl.Execute(&page, pageData{
		Title:            cfg.TitleBrand,
		AgentEmbeddedURL: cfg.AgentEmbeddedURL,
		WSPath:           "/ws",
	}); err != nil {
		return nil, err
	}
	bridge, err := assets.ReadFile("assets/bridge.js")
	if err != nil {
		return nil, err
	}

	s := &PageServer{echo: newEcho(logger), page: page.Bytes(), bridge: bridge}

	s.echo.GET("/", s.handleRoot)
	s.echo.GET(ContainerPath, s.handlePage)
	s.echo.GET("/bridge.js", s.handleBridge)
	s.echo.GET("/ws", ws.HandleWebSocket)

	return s, nil
}

// Handler exposes the router for tests.
func (s *PageServer) Handler() http.Handler { return s.echo }

// Start starts the HTTP server.
func (s *PageServer) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *PageServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleRoot redirects to the host page, keeping the query.
func (s *PageServer) handleRoot(c echo.Context) error {
	target := ContainerPath
	if q := c.Request().URL.RawQuery; q != "" {
		target += "?" + q
	}
	return c.Redirect(http.StatusFound, target)
}

func (s *PageServer) handlePage(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.HTMLBlob(http.StatusOK, s.page)
}

func (s *PageServer) handleBridge(c echo.Context) error {
	return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", s.bridge)
}
