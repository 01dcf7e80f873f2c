package protocol

import "encoding/json"

// Envelope kinds sent by the host page bridge
const (
	KindHello      = "hello"
	KindMessage    = "message"
	KindLoad       = "load"
	KindPopState   = "popstate"
	KindVisibility = "visibility"
	KindUnload     = "unload"
	KindToggle     = "toggle"
	KindURLCheck   = "url_check"
)

// Surfaces reported by KindLoad
const (
	SurfaceFrontend = "frontend"
	SurfaceAgent    = "agent"
)

// Envelope is one browser event relayed by the host page bridge.
type Envelope struct {
	Kind string `json:"kind"`

	// Location is the host page's address when the event fired.
	Location string `json:"location,omitempty"`
	// FrontendLocation is the frontend's live address when it was
	// same-origin readable; empty otherwise.
	FrontendLocation string `json:"frontendLocation,omitempty"`

	// hello
	TabID        string          `json:"tabId,omitempty"`
	HistoryState json.RawMessage `json:"historyState,omitempty"`

	// message
	Origin string          `json:"origin,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`

	// load
	Surface string `json:"surface,omitempty"`

	// popstate
	State json.RawMessage `json:"state,omitempty"`

	// visibility
	Hidden bool `json:"hidden,omitempty"`
}

// Command ops sent to the host page bridge
const (
	OpPost          = "post"
	OpLoadFrontend  = "load_frontend"
	OpReplaceState  = "replace_state"
	OpSetTitle      = "set_title"
	OpAgentVisible  = "agent_visible"
	OpShowContainer = "show_container"
)

// Command is one instruction executed by the host page bridge.
type Command struct {
	Op string `json:"op"`

	// post
	Target       string `json:"target,omitempty"`
	TargetOrigin string `json:"targetOrigin,omitempty"`
	Data         any    `json:"data,omitempty"`

	// load_frontend, replace_state
	URL   string `json:"url,omitempty"`
	State any    `json:"state,omitempty"`

	// set_title
	Title string `json:"title,omitempty"`

	// agent_visible
	Visible *bool `json:"visible,omitempty"`
}
