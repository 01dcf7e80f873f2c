// Package hub tracks the live bridge connections of container pages.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection is one bridge WebSocket. Each connection serves exactly one
// container page load.
type Connection struct {
	ID    string
	TabID string
	Conn  *websocket.Conn
	Send  chan []byte
	hub   *Hub
	mu    sync.Mutex
}

// Hub manages all bridge connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Tabs maps tab id to the set of connection IDs serving it
	tabs map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	done       chan struct{}

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		tabs:        make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run processes registrations until ctx is cancelled. After it returns,
// Register and Unregister apply their changes directly.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.register:
			h.add(conn)
		case conn := <-h.unregister:
			h.remove(conn)
		}
	}
}

func (h *Hub) add(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	if conn.TabID != "" {
		h.addToTab(conn)
	}
	h.mu.Unlock()
	h.logger.Debug("connection registered", zap.String("conn_id", conn.ID), zap.String("tab_id", conn.TabID))
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.connections[conn.ID]; ok {
		delete(h.connections, conn.ID)
		h.removeFromTab(conn)
		close(conn.Send)
	}
	h.mu.Unlock()
	h.logger.Debug("connection unregistered", zap.String("conn_id", conn.ID))
}

func (h *Hub) addToTab(conn *Connection) {
	if h.tabs[conn.TabID] == nil {
		h.tabs[conn.TabID] = make(map[string]bool)
	}
	h.tabs[conn.TabID][conn.ID] = true
}

func (h *Hub) removeFromTab(conn *Connection) {
	if conn.TabID == "" || h.tabs[conn.TabID] == nil {
		return
	}
	delete(h.tabs[conn.TabID], conn.ID)
	if len(h.tabs[conn.TabID]) == 0 {
		delete(h.tabs, conn.TabID)
	}
}

// NewConnection wraps ws in a connection owned by the hub.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
		hub:  h,
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		h.add(conn)
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		h.remove(conn)
	}
}

// BindTab binds a connection to the browser tab it serves.
func (h *Hub) BindTab(conn *Connection, tabID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromTab(conn)
	conn.TabID = tabID
	if _, registered := h.connections[conn.ID]; registered {
		h.addToTab(conn)
	}
}

// SendToConnection queues data for conn.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection queues v, encoded as JSON, for conn.
func (h *Hub) SendJSONToConnection(conn *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// ConnectionCount returns the number of live connections, one per open page.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// TabCount returns the number of tabs with at least one live page.
func (h *Hub) TabCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tabs)
}

// HasActiveConnections reports whether tabID has a live page.
func (h *Hub) HasActiveConnections(tabID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	connIDs, ok := h.tabs[tabID]
	return ok && len(connIDs) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
