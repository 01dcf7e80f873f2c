// Package history keeps the host browser's address bar and back/forward
// entries in step with the embedded frontend.
package history

import (
	"encoding/json"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// State is attached to every history entry written by the container.
type State struct {
	IsContainerPage bool   `json:"isContainerPage"`
	FrontendURL     string `json:"frontendUrl"`
	AgentVisible    bool   `json:"agentVisible"`
	ContainerURL    string `json:"containerUrl"`
	Timestamp       int64  `json:"timestamp"`
}

// Browser is the host browser's location and history.
type Browser interface {
	// Location returns the address currently shown in the address bar.
	Location() string
	// ReplaceState replaces the current history entry in place.
	ReplaceState(state State, url string) error
}

// Bridge writes container state into the host browser history.
type Bridge struct {
	browser Browser
	now     func() time.Time
	logger  *zap.Logger
}

// NewBridge creates a bridge over browser.
func NewBridge(browser Browser, now func() time.Time, logger *zap.Logger) *Bridge {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{browser: browser, now: now, logger: logger}
}

// Sync records frontendURL and the agent visibility on the current history
// entry. The address bar is rewritten only when it differs from frontendURL;
// no new entry is ever pushed.
func (b *Bridge) Sync(frontendURL string, agentVisible bool) State {
	current := b.browser.Location()
	state := State{
		IsContainerPage: true,
		FrontendURL:     frontendURL,
		AgentVisible:    agentVisible,
		ContainerURL:    containerURL(current),
		Timestamp:       b.now().UnixMilli(),
	}

	target := frontendURL
	if current == frontendURL {
		target = current
		b.logger.Debug("browser address already matches frontend", zap.String("url", current))
	} else {
		b.logger.Debug("replacing browser address",
			zap.String("from", current),
			zap.String("to", frontendURL))
	}

	if err := b.browser.ReplaceState(state, target); err != nil {
		b.logger.Warn("failed to sync container url", zap.String("url", target), zap.Error(err))
	}
	return state
}

// Decode parses a history entry state and reports whether the entry was
// written by the container.
func Decode(raw json.RawMessage) (State, bool) {
	if len(raw) == 0 {
		return State{}, false
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, false
	}
	return state, state.IsContainerPage
}

// PopState interprets the state of a history entry the user navigated to.
// Only container entries that name a frontend address are returned.
func (b *Bridge) PopState(raw json.RawMessage) (State, bool) {
	state, ok := Decode(raw)
	if !ok || state.FrontendURL == "" {
		b.logger.Debug("ignoring history entry not owned by the container")
		return State{}, false
	}
	return state, true
}

// containerURL returns origin + path of the host address.
func containerURL(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return location
	}
	return u.Scheme + "://" + u.Host + u.Path
}
