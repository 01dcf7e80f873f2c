// Package config provides configuration for the container service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the container configuration.
type Config struct {
	// Server settings
	HTTPPort     int `yaml:"http_port"`     // Host page, bridge script and /ws
	InternalPort int `yaml:"internal_port"` // /health, /metrics

	// Embedded documents
	FrontendURL      string `yaml:"frontend_url"`
	AgentURL         string `yaml:"agent_url"`
	AgentEmbeddedURL string `yaml:"agent_embedded_url"`

	// ContainerMarkers are substrings identifying the container's own address.
	ContainerMarkers []string `yaml:"container_markers"`
	TitleBrand       string   `yaml:"title_brand"`

	// Persistence; empty DatabaseURL keeps state in memory.
	DatabaseURL string        `yaml:"database_url"`
	StateMaxAge time.Duration `yaml:"-"`

	// Protocol timing
	ExtractDebounce time.Duration `yaml:"-"`
	SettleDelay     time.Duration `yaml:"-"`

	// Forwarding policy for unrecognized frontend messages.
	ForwardPolicyFile string `yaml:"forward_policy_file"`

	// WebSocket settings
	PingInterval   time.Duration `yaml:"-"`
	WriteTimeout   time.Duration `yaml:"-"`
	ReadTimeout    time.Duration `yaml:"-"`
	MaxMessageSize int64         `yaml:"max_message_size"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Millisecond forms of the durations above, as written in YAML.
	StateMaxAgeMs     int `yaml:"state_max_age_ms"`
	ExtractDebounceMs int `yaml:"extract_debounce_ms"`
	SettleDelayMs     int `yaml:"settle_delay_ms"`
	PingIntervalMs    int `yaml:"ws_ping_interval_ms"`
	WriteTimeoutMs    int `yaml:"ws_write_timeout_ms"`
	ReadTimeoutMs     int `yaml:"ws_read_timeout_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:          8092,
		InternalPort:      8093,
		FrontendURL:       "http://localhost:3000",
		AgentURL:          "http://localhost:3001",
		AgentEmbeddedURL:  "http://localhost:3001/embedded",
		ContainerMarkers:  []string{"iframe-container.html", "127.0.0.1:5500"},
		TitleBrand:        "Lenskart",
		StateMaxAgeMs:     30000,
		ExtractDebounceMs: 2000,
		SettleDelayMs:     0,
		PingIntervalMs:    30000,
		WriteTimeoutMs:    10000,
		ReadTimeoutMs:     60000,
		MaxMessageSize:    4 << 20,
		LogLevel:          "info",
	}
}

// Load loads configuration from the optional YAML file named by
// CONTAINER_CONFIG, then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONTAINER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.InternalPort = getEnvInt("INTERNAL_PORT", cfg.InternalPort)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.AgentURL = getEnv("AGENT_URL", cfg.AgentURL)
	cfg.AgentEmbeddedURL = getEnv("AGENT_EMBEDDED_URL", cfg.AgentEmbeddedURL)
	cfg.ContainerMarkers = getEnvList("CONTAINER_MARKERS", cfg.ContainerMarkers)
	cfg.TitleBrand = getEnv("TITLE_BRAND", cfg.TitleBrand)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ForwardPolicyFile = getEnv("FORWARD_POLICY_FILE", cfg.ForwardPolicyFile)
	cfg.StateMaxAgeMs = getEnvInt("STATE_MAX_AGE_MS", cfg.StateMaxAgeMs)
	cfg.ExtractDebounceMs = getEnvInt("EXTRACT_DEBOUNCE_MS", cfg.ExtractDebounceMs)
	cfg.SettleDelayMs = getEnvInt("SETTLE_DELAY_MS", cfg.SettleDelayMs)
	cfg.PingIntervalMs = getEnvInt("WS_PING_INTERVAL_MS", cfg.PingIntervalMs)
	cfg.WriteTimeoutMs = getEnvInt("WS_WRITE_TIMEOUT_MS", cfg.WriteTimeoutMs)
	cfg.ReadTimeoutMs = getEnvInt("WS_READ_TIMEOUT_MS", cfg.ReadTimeoutMs)
	cfg.MaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(cfg.MaxMessageSize)))
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.resolveDurations()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) resolveDurations() {
	c.StateMaxAge = time.Duration(c.StateMaxAgeMs) * time.Millisecond
	c.ExtractDebounce = time.Duration(c.ExtractDebounceMs) * time.Millisecond
	c.SettleDelay = time.Duration(c.SettleDelayMs) * time.Millisecond
	c.PingInterval = time.Duration(c.PingIntervalMs) * time.Millisecond
	c.WriteTimeout = time.Duration(c.WriteTimeoutMs) * time.Millisecond
	c.ReadTimeout = time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// Validate checks the settings the protocol cannot run without.
func (c *Config) Validate() error {
	if c.FrontendURL == "" {
		return fmt.Errorf("frontend_url is required")
	}
	if c.AgentURL == "" {
		return fmt.Errorf("agent_url is required")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ws_ping_interval_ms must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
