package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/container/internal/protocol"
)

// Client stands in for a host page on the bridge socket.
type Client struct {
	conn *websocket.Conn
	done chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello opens the page the way the bridge script does.
func (c *Client) SendHello(tabID, location string) error {
	if err := c.conn.WriteJSON(protocol.Envelope{
		Kind:     protocol.KindHello,
		TabID:    tabID,
		Location: location,
	}); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}
	return nil
}

// Send writes one envelope.
func (c *Client) Send(env protocol.Envelope) error {
	return c.conn.WriteJSON(env)
}

// ReadCommands prints every command the server sends until the connection
// closes.
func (c *Client) ReadCommands(out io.Writer) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, formatCommand(data))
	}
}

// formatCommand renders a command on one line: the op, then its fields.
func formatCommand(data []byte) string {
	var cmd map[string]json.RawMessage
	if err := json.Unmarshal(data, &cmd); err != nil {
		return "? " + string(data)
	}
	var op string
	json.Unmarshal(cmd["op"], &op)
	delete(cmd, "op")
	if len(cmd) == 0 {
		return op
	}
	rest, _ := json.Marshal(cmd)
	return op + " " + string(rest)
}

// parseLine turns one input line into an envelope. Lines starting with "{"
// are raw envelopes; otherwise the first word names the event:
//
//	load frontend|agent
//	msg <origin> <json>
//	pop <json>
//	hide | show | unload | toggle | url
func parseLine(line string) (protocol.Envelope, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var env protocol.Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			return env, fmt.Errorf("invalid envelope: %w", err)
		}
		return env, nil
	}

	word, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch word {
	case "load":
		if rest != protocol.SurfaceFrontend && rest != protocol.SurfaceAgent {
			return protocol.Envelope{}, fmt.Errorf("load needs frontend or agent")
		}
		return protocol.Envelope{Kind: protocol.KindLoad, Surface: rest}, nil
	case "msg":
		origin, data, ok := strings.Cut(rest, " ")
		if !ok || !json.Valid([]byte(data)) {
			return protocol.Envelope{}, fmt.Errorf("usage: msg <origin> <json>")
		}
		return protocol.Envelope{Kind: protocol.KindMessage, Origin: origin, Data: json.RawMessage(data)}, nil
	case "pop":
		if !json.Valid([]byte(rest)) {
			return protocol.Envelope{}, fmt.Errorf("usage: pop <json>")
		}
		return protocol.Envelope{Kind: protocol.KindPopState, State: json.RawMessage(rest)}, nil
	case "hide":
		return protocol.Envelope{Kind: protocol.KindVisibility, Hidden: true}, nil
	case "show":
		return protocol.Envelope{Kind: protocol.KindVisibility}, nil
	case "unload":
		return protocol.Envelope{Kind: protocol.KindUnload}, nil
	case "toggle":
		return protocol.Envelope{Kind: protocol.KindToggle}, nil
	case "url":
		return protocol.Envelope{Kind: protocol.KindURLCheck}, nil
	default:
		return protocol.Envelope{}, fmt.Errorf("unknown event %q", word)
	}
}
