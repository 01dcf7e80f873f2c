package container

import (
	"context"

	"github.com/xiaot623/gogo/container/internal/protocol"
)

// FrontendDocument is the embedded document the user browses.
type FrontendDocument interface {
	// Load points the frontend frame at url.
	Load(url string)
	// Post delivers msg to the frontend document.
	Post(msg protocol.Message)
	// LiveURL returns the frontend's current address when it can be read
	// from the host page; ok is false when it cannot (cross-origin).
	LiveURL() (url string, ok bool)
}

// AgentDocument is the embedded document observing the frontend.
type AgentDocument interface {
	Post(msg protocol.Message)
}

// Surface is the visible container around the two documents.
type Surface interface {
	SetAgentVisible(visible bool)
	SetTitle(title string)
	ShowContainer()
}

// ForwardPolicy decides whether an unrecognized frontend message reaches the
// agent.
type ForwardPolicy interface {
	AllowForward(ctx context.Context, msgType, origin string) (bool, error)
}
