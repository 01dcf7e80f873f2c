package container

import (
	"fmt"
	"net/url"
	"strings"
)

// AllowList holds the two trusted sender origins. Every inbound message is
// checked against it; nothing else authenticates a message.
type AllowList struct {
	frontend string
	agent    string
}

// NewAllowList derives the trusted origins from the configured document
// addresses.
func NewAllowList(frontendURL, agentURL string) (*AllowList, error) {
	frontend, err := Origin(frontendURL)
	if err != nil {
		return nil, fmt.Errorf("frontend origin: %w", err)
	}
	agent, err := Origin(agentURL)
	if err != nil {
		return nil, fmt.Errorf("agent origin: %w", err)
	}
	return &AllowList{frontend: frontend, agent: agent}, nil
}

// Origin returns scheme://host[:port] of an absolute address in the form a
// browser reports it: lowercased, with the scheme's default port dropped.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute address", raw)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// IsFrontend reports whether origin is the trusted frontend origin.
func (a *AllowList) IsFrontend(origin string) bool {
	return origin != "" && origin == a.frontend
}

// IsAgent reports whether origin is the trusted agent origin.
func (a *AllowList) IsAgent(origin string) bool {
	return origin != "" && origin == a.agent
}

// Frontend returns the trusted frontend origin.
func (a *AllowList) Frontend() string { return a.frontend }

// Agent returns the trusted agent origin.
func (a *AllowList) Agent() string { return a.agent }
