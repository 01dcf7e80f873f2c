package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when an inbound message cannot be decoded.
var ErrMalformed = errors.New("malformed message")

// AgentMessage is one of the messages the agent document may send. The set
// is closed: Navigate, UpdateURL, FetchDOMData, RequestHTMLExtraction,
// ExecuteAction and UnknownAgentMessage.
type AgentMessage interface {
	agentMessage()
}

// Navigate asks the container to load Path relative to the frontend base.
type Navigate struct {
	Path string `json:"path"`
}

// UpdateURL asks the container to load URL in the frontend.
type UpdateURL struct {
	URL string `json:"url"`
}

// FetchDOMData opens a pending DOM request.
type FetchDOMData struct {
	Request PendingRequest
}

// RequestHTMLExtraction asks for a debounced content extraction.
type RequestHTMLExtraction struct{}

// ExecuteAction carries an opaque action for the frontend.
type ExecuteAction struct {
	Payload json.RawMessage
}

// UnknownAgentMessage is any agent message with an unrecognized tag.
type UnknownAgentMessage struct {
	Type string
}

func (Navigate) agentMessage()              {}
func (UpdateURL) agentMessage()             {}
func (FetchDOMData) agentMessage()          {}
func (RequestHTMLExtraction) agentMessage() {}
func (ExecuteAction) agentMessage()         {}
func (UnknownAgentMessage) agentMessage()   {}

// agentEnvelope is the {type, payload} shape the agent posts.
type agentEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeAgent parses a message received on the agent channel.
func DecodeAgent(data []byte) (AgentMessage, error) {
	var env agentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeNavigate:
		var msg Navigate
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeUpdateURL:
		var msg UpdateURL
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeFetchDOMData:
		var req PendingRequest
		if err := decodePayload(env, &req); err != nil {
			return nil, err
		}
		return FetchDOMData{Request: req}, nil
	case TypeRequestHTMLExtraction:
		return RequestHTMLExtraction{}, nil
	case TypeExecuteAction:
		return ExecuteAction{Payload: env.Payload}, nil
	default:
		return UnknownAgentMessage{Type: env.Type}, nil
	}
}

func decodePayload(env agentEnvelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

// FrontendMessage is one of the messages the frontend document may send. The
// set is closed: URLReport, BodyHTMLResponse, ClickEvent and
// UnrecognizedFrontendMessage.
type FrontendMessage interface {
	frontendMessage()
}

// URLReport is URL_CHANGED_NOTIFICATION or CURRENT_URL_RESPONSE.
type URLReport struct {
	Type string
	URL  string
}

// BodyHTMLResponse carries the frontend's rendered content.
type BodyHTMLResponse struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// ClickEvent is a click captured in the frontend.
type ClickEvent struct {
	Click ClickData
}

// UnrecognizedFrontendMessage is any other frontend message, kept verbatim.
type UnrecognizedFrontendMessage struct {
	Type string
	Raw  json.RawMessage
}

func (URLReport) frontendMessage()                   {}
func (BodyHTMLResponse) frontendMessage()            {}
func (ClickEvent) frontendMessage()                  {}
func (UnrecognizedFrontendMessage) frontendMessage() {}

// DecodeFrontend parses a message received on the frontend channel. Data
// that is not a typed object decodes as UnrecognizedFrontendMessage with an
// empty Type.
func DecodeFrontend(data []byte) (FrontendMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return UnrecognizedFrontendMessage{Raw: json.RawMessage(data)}, nil
	}

	switch head.Type {
	case TypeURLChangedNotification, TypeCurrentURLResponse:
		var body struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Type, err)
		}
		return URLReport{Type: head.Type, URL: body.URL}, nil
	case TypeBodyHTMLResponse:
		var msg BodyHTMLResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Type, err)
		}
		return msg, nil
	case TypeClickEvent:
		var click ClickData
		if err := json.Unmarshal(data, &click); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Type, err)
		}
		return ClickEvent{Click: click}, nil
	default:
		return UnrecognizedFrontendMessage{Type: head.Type, Raw: json.RawMessage(data)}, nil
	}
}
