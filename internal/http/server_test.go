package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/container/internal/config"
	"github.com/xiaot623/gogo/container/internal/hub"
	"github.com/xiaot623/gogo/container/internal/metrics"
)

type stubBridge struct{}

func (stubBridge) HandleWebSocket(c echo.Context) error {
	return c.NoContent(http.StatusTeapot)
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.NewHub(nil)
	go h.Run(ctx)

	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindTab(conn, "tab-1")
	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, time.Second, time.Millisecond)

	rec := serve(t, NewServer(h, metrics.New(), nil).Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 1.0, body["pages"])
	assert.Equal(t, 1.0, body["tabs"])
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveExtraction("accepted")

	rec := serve(t, NewServer(hub.NewHub(nil), m, nil).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "container_extraction_requests_total")

	rec = serve(t, NewServer(hub.NewHub(nil), nil, nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPageServer(t *testing.T) {
	cfg := config.Default()
	cfg.AgentEmbeddedURL = "http://localhost:3001/embedded?x=1&y=2"
	s, err := NewPageServer(cfg, stubBridge{}, nil)
	require.NoError(t, err)

	rec := serve(t, s.Handler(), "/?frontend=%2Fproduct%2F123&agent=open")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, ContainerPath+"?frontend=%2Fproduct%2F123&agent=open", rec.Header().Get("Location"))

	rec = serve(t, s.Handler(), ContainerPath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	page := rec.Body.String()
	assert.Contains(t, page, "<title>Lenskart</title>")
	assert.Contains(t, page, `src="http://localhost:3001/embedded?x=1&amp;y=2"`)
	assert.Contains(t, page, `<script src="/bridge.js"></script>`)

	rec = serve(t, s.Handler(), "/bridge.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "new WebSocket")

	rec = serve(t, s.Handler(), "/ws")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
