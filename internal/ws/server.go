// Package ws serves the bridge WebSocket that connects each container page to
// its orchestrator.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/config"
	"github.com/xiaot623/gogo/container/internal/container"
	"github.com/xiaot623/gogo/container/internal/hub"
	"github.com/xiaot623/gogo/container/internal/metrics"
	"github.com/xiaot623/gogo/container/internal/protocol"
	"github.com/xiaot623/gogo/container/internal/session"
)

// Deps are the shared collaborators of every page served.
type Deps struct {
	Store   session.Store
	Policy  container.ForwardPolicy
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Server handles bridge WebSocket connections.
type Server struct {
	ctx      context.Context
	cfg      *config.Config
	hub      *hub.Hub
	deps     Deps
	origins  *container.AllowList
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a bridge server. Pages stop when ctx is cancelled.
func NewServer(ctx context.Context, cfg *config.Config, h *hub.Hub, deps Deps) (*Server, error) {
	origins, err := container.NewAllowList(cfg.FrontendURL, cfg.AgentURL)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Store == nil {
		deps.Store = session.NewMemoryStore()
	}
	return &Server{
		ctx:     ctx,
		cfg:     cfg,
		hub:     h,
		deps:    deps,
		origins: origins,
		logger:  deps.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}, nil
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	pc := &pageConn{server: s, conn: conn, logger: s.logger.With(zap.String("conn_id", conn.ID))}
	go s.writePump(conn)
	go s.readPump(pc)

	return nil
}

// readPump reads bridge envelopes until the socket closes, then stops the
// page before releasing the connection.
func (s *Server) readPump(pc *pageConn) {
	conn := pc.conn
	defer func() {
		pc.stop()
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				pc.logger.Warn("websocket error", zap.Error(err))
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		s.handleMessage(pc, message)
	}
}

// writePump writes queued commands to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("failed to write command", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one envelope. Everything but hello runs on the
// page's event loop.
func (s *Server) handleMessage(pc *pageConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		pc.logger.Warn("invalid bridge envelope", zap.Error(err))
		return
	}

	if env.Kind == protocol.KindHello {
		s.handleHello(pc, env)
		return
	}
	if pc.page == nil {
		pc.logger.Warn("envelope before hello", zap.String("kind", env.Kind))
		return
	}

	var ev container.Event
	switch env.Kind {
	case protocol.KindMessage:
		ev = func(ctx context.Context, o *container.Orchestrator) { o.HandleMessage(ctx, env.Origin, env.Data) }
	case protocol.KindLoad:
		ev = func(ctx context.Context, o *container.Orchestrator) { o.SurfaceLoaded(ctx, env.Surface) }
	case protocol.KindPopState:
		ev = func(ctx context.Context, o *container.Orchestrator) { o.PopState(ctx, env.State) }
	case protocol.KindVisibility:
		ev = func(ctx context.Context, o *container.Orchestrator) { o.VisibilityChanged(ctx, env.Hidden) }
	case protocol.KindUnload:
		ev = func(ctx context.Context, o *container.Orchestrator) { o.Unload(ctx) }
	case protocol.KindToggle:
		ev = func(ctx context.Context, o *container.Orchestrator) { o.ToggleAgent(ctx) }
	case protocol.KindURLCheck:
		ev = func(ctx context.Context, o *container.Orchestrator) { o.RequestURLCheck(ctx) }
	default:
		pc.logger.Warn("unknown envelope kind", zap.String("kind", env.Kind))
		return
	}

	pc.page.Post(func(ctx context.Context, o *container.Orchestrator) {
		pc.observe(env)
		ev(ctx, o)
	})
}

// handleHello binds the connection to its tab and starts the page.
func (s *Server) handleHello(pc *pageConn, env protocol.Envelope) {
	if pc.page != nil {
		pc.logger.Warn("duplicate hello ignored")
		return
	}

	tabID := env.TabID
	if tabID == "" {
		tabID = "tab_" + uuid.New().String()[:8]
	}
	s.hub.BindTab(pc.conn, tabID)
	pc.logger = pc.logger.With(zap.String("tab_id", tabID))

	slot := session.NewSlot(s.deps.Store, tabID, s.cfg.StateMaxAge, nil, pc.logger)
	page, err := container.NewPage(pc.conn.ID, container.Options{
		FrontendURL:      s.cfg.FrontendURL,
		AgentURL:         s.cfg.AgentURL,
		ContainerMarkers: s.cfg.ContainerMarkers,
		TitleBrand:       s.cfg.TitleBrand,
		ExtractDebounce:  s.cfg.ExtractDebounce,
		SettleDelay:      s.cfg.SettleDelay,
	}, container.Deps{
		Frontend: frontendPort{pc},
		Agent:    agentPort{pc},
		Surface:  pc,
		Browser:  pc,
		Slot:     slot,
		Policy:   s.deps.Policy,
		Metrics:  s.deps.Metrics,
		Logger:   pc.logger,
	}, 64)
	if err != nil {
		pc.logger.Error("failed to create page", zap.Error(err))
		pc.conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	pc.page = page
	pc.cancel = cancel
	go page.Run(ctx)
	s.deps.Metrics.PageOpened()
	pc.logger.Info("container page opened")

	in := container.InitInput{Location: env.Location, HistoryState: env.HistoryState}
	page.Post(func(ctx context.Context, o *container.Orchestrator) {
		pc.observe(env)
		o.Init(ctx, in)
	})
}
