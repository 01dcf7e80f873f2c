package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONTAINER_CONFIG", "")
	t.Setenv("FRONTEND_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, "http://localhost:3001", cfg.AgentURL)
	assert.Equal(t, 2*time.Second, cfg.ExtractDebounce)
	assert.Equal(t, 30*time.Second, cfg.StateMaxAge)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay)
	assert.Equal(t, []string{"iframe-container.html", "127.0.0.1:5500"}, cfg.ContainerMarkers)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "container.yaml")
	content := []byte(`
frontend_url: http://shop.test
agent_url: http://agent.test
extract_debounce_ms: 500
container_markers: [container.html]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONTAINER_CONFIG", path)
	t.Setenv("AGENT_URL", "http://agent.override")
	t.Setenv("CONTAINER_MARKERS", "a.html, b:1 ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://shop.test", cfg.FrontendURL)
	assert.Equal(t, "http://agent.override", cfg.AgentURL)
	assert.Equal(t, 500*time.Millisecond, cfg.ExtractDebounce)
	assert.Equal(t, []string{"a.html", "b:1"}, cfg.ContainerMarkers)
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("CONTAINER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}
