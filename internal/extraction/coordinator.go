// Package extraction decides when a content extraction may be requested from
// the frontend document.
package extraction

import (
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/protocol"
)

// Outcome reports what a call to Request did.
type Outcome string

const (
	Accepted  Outcome = "accepted"
	Debounced Outcome = "debounced"
	Unchanged Outcome = "unchanged"
)

// Config controls the coordinator.
type Config struct {
	// Window is the minimum interval between accepted requests. Default: 2s.
	Window time.Duration
	// Now returns the current time. Default: time.Now (monotonic).
	Now func() time.Time
	// NewRequestID generates request identifiers. Default: protocol.NewRequestID.
	NewRequestID func() string
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = 2 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewRequestID == nil {
		c.NewRequestID = protocol.NewRequestID
	}
}

// Coordinator sends REQUEST_BODY_HTML to the frontend at most once per
// window, and never for a page whose address is known not to have changed
// since the last accepted extraction. Responses are not matched here.
type Coordinator struct {
	cfg       Config
	live      func() (string, bool)
	send      func(protocol.Message)
	last      time.Time
	hasLast   bool
	extracted string
	logger    *zap.Logger
}

// New creates a coordinator. live reports the frontend's live address when it
// is readable; send posts a message to the frontend.
func New(cfg Config, live func() (string, bool), send func(protocol.Message), logger *zap.Logger) *Coordinator {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, live: live, send: send, logger: logger}
}

// Request attempts an extraction for the page last known at pageURL.
func (c *Coordinator) Request(pageURL string) Outcome {
	now := c.cfg.Now()
	if c.hasLast {
		if elapsed := now.Sub(c.last); elapsed < c.cfg.Window {
			c.logger.Debug("extraction debounced", zap.Duration("since_last", elapsed))
			return Debounced
		}
	}

	current, readable := c.live()
	if readable {
		if c.hasLast && current == c.extracted {
			c.logger.Debug("extraction skipped, address unchanged", zap.String("url", current))
			return Unchanged
		}
		pageURL = current
	}

	c.last = now
	c.hasLast = true
	c.extracted = pageURL

	requestID := c.cfg.NewRequestID()
	c.send(protocol.NewFrontendRequest(protocol.TypeRequestBodyHTML, requestID))
	c.logger.Debug("extraction requested", zap.String("request_id", requestID))
	return Accepted
}
