// Package protocol defines the cross-document message protocol spoken between
// the container, the frontend document and the agent document.
package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Message types from container to frontend
const (
	TypeRequestBodyHTML      = "REQUEST_BODY_HTML"
	TypeRequestCurrentURL    = "REQUEST_CURRENT_URL"
	TypeSetupClickMonitoring = "SETUP_CLICK_MONITORING"
	TypeExecuteWebsiteAction = "EXECUTE_WEBSITE_ACTION"
)

// Message types from frontend to container
const (
	TypeURLChangedNotification = "URL_CHANGED_NOTIFICATION"
	TypeCurrentURLResponse     = "CURRENT_URL_RESPONSE"
	TypeBodyHTMLResponse       = "BODY_HTML_RESPONSE"
	TypeClickEvent             = "CLICK_EVENT"
)

// Message types from container to agent
const (
	TypeDOMDataResponse = "DOM_DATA_RESPONSE"
	TypeHostPageData    = "HOST_PAGE_DATA"
	TypeUserClickEvent  = "USER_CLICK_EVENT"
)

// Message types from agent to container
const (
	TypeNavigate              = "NAVIGATE"
	TypeUpdateURL             = "UPDATE_URL"
	TypeFetchDOMData          = "FETCH_DOM_DATA"
	TypeRequestHTMLExtraction = "REQUEST_HTML_EXTRACTION"
	TypeExecuteAction         = "EXECUTE_ACTION"
)

// Message is an outbound message posted into one of the embedded documents.
type Message interface {
	MessageType() string
}

// NewRequestID returns a fresh container-generated request identifier.
func NewRequestID() string {
	return "req_" + uuid.New().String()[:8]
}

// FrontendRequest is a request-style message sent to the frontend
// (REQUEST_BODY_HTML, REQUEST_CURRENT_URL, SETUP_CLICK_MONITORING).
type FrontendRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
}

// NewFrontendRequest builds a request of the given type.
func NewFrontendRequest(msgType, requestID string) *FrontendRequest {
	return &FrontendRequest{Type: msgType, RequestID: requestID}
}

func (m *FrontendRequest) MessageType() string { return m.Type }

// ExecuteWebsiteAction forwards an agent action command to the frontend.
type ExecuteWebsiteAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewExecuteWebsiteAction wraps an opaque action payload.
func NewExecuteWebsiteAction(payload json.RawMessage) *ExecuteWebsiteAction {
	return &ExecuteWebsiteAction{Type: TypeExecuteWebsiteAction, Payload: payload}
}

func (m *ExecuteWebsiteAction) MessageType() string { return m.Type }

// PendingRequest is the payload of FETCH_DOM_DATA. RequestID is opaque and is
// echoed back exactly as the agent sent it.
type PendingRequest struct {
	RequestID       json.RawMessage `json:"requestId"`
	Action          string          `json:"action"`
	IsContextUpdate bool            `json:"isContextUpdate"`
}

// ID returns the request identifier in printable form.
func (r PendingRequest) ID() string { return printableID(r.RequestID) }

// printableID unquotes string identifiers and leaves other JSON values as
// written.
func printableID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// DOMDataResponse answers a pending FETCH_DOM_DATA request.
type DOMDataResponse struct {
	Type    string         `json:"type"`
	Payload DOMDataPayload `json:"payload"`
}

// DOMDataPayload carries the correlated result.
type DOMDataPayload struct {
	RequestID       json.RawMessage `json:"requestId"`
	Action          string          `json:"action"`
	IsContextUpdate bool            `json:"isContextUpdate"`
	Result          string          `json:"result"`
}

// ID returns the echoed request identifier in printable form.
func (p DOMDataPayload) ID() string { return printableID(p.RequestID) }

// NewDOMDataResponse correlates content with the request that asked for it.
func NewDOMDataResponse(req PendingRequest, result string) *DOMDataResponse {
	return &DOMDataResponse{
		Type: TypeDOMDataResponse,
		Payload: DOMDataPayload{
			RequestID:       req.RequestID,
			Action:          req.Action,
			IsContextUpdate: req.IsContextUpdate,
			Result:          result,
		},
	}
}

func (m *DOMDataResponse) MessageType() string { return m.Type }

// HostPageData is the uncorrelated page content broadcast to the agent.
type HostPageData struct {
	Type    string          `json:"type"`
	Payload HostPagePayload `json:"payload"`
}

// HostPagePayload is the extracted page.
type HostPagePayload struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	HTML        string `json:"html"`
	Timestamp   string `json:"timestamp"`
	ExtractedAt int64  `json:"extractedAt"`
}

func (m *HostPageData) MessageType() string { return m.Type }

// ClickData mirrors the frontend's CLICK_EVENT fields verbatim.
type ClickData struct {
	Element     json.RawMessage `json:"element,omitempty"`
	DOMPath     json.RawMessage `json:"domPath,omitempty"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	Text        json.RawMessage `json:"text,omitempty"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// UserClickEvent relays a frontend click to the agent.
type UserClickEvent struct {
	Type    string    `json:"type"`
	Payload ClickData `json:"payload"`
}

// NewUserClickEvent repackages a click for the agent channel.
func NewUserClickEvent(click ClickData) *UserClickEvent {
	return &UserClickEvent{Type: TypeUserClickEvent, Payload: click}
}

func (m *UserClickEvent) MessageType() string { return m.Type }

// Raw is a message forwarded without modification.
type Raw struct {
	Type string
	Data json.RawMessage
}

func (m *Raw) MessageType() string { return m.Type }

// MarshalJSON emits the original bytes.
func (m *Raw) MarshalJSON() ([]byte, error) {
	if len(m.Data) == 0 {
		return []byte("null"), nil
	}
	return m.Data, nil
}
