package ws

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/container"
	"github.com/xiaot623/gogo/container/internal/history"
	"github.com/xiaot623/gogo/container/internal/hub"
	"github.com/xiaot623/gogo/container/internal/protocol"
)

// pageConn is the Go side of one host page. It turns orchestrator effects
// into bridge commands. location and frontendLocation are only touched on the
// page loop.
type pageConn struct {
	server *Server
	conn   *hub.Connection
	logger *zap.Logger

	page   *container.Page
	cancel context.CancelFunc

	location         string
	frontendLocation string
}

// observe records the addresses the bridge reported with an event.
func (pc *pageConn) observe(env protocol.Envelope) {
	if env.Location != "" {
		pc.location = env.Location
	}
	pc.frontendLocation = env.FrontendLocation
}

const flushTimeout = 2 * time.Second

// stop lets the page finish the events already queued, then ends its loop.
func (pc *pageConn) stop() {
	if pc.page == nil {
		return
	}
	flushed := make(chan struct{})
	if pc.page.Post(func(context.Context, *container.Orchestrator) { close(flushed) }) {
		select {
		case <-flushed:
		case <-time.After(flushTimeout):
			pc.logger.Warn("page did not drain before close")
		}
	}
	pc.cancel()
	<-pc.page.Done()
	pc.server.deps.Metrics.PageClosed()
	pc.logger.Info("container page closed")
}

func (pc *pageConn) send(cmd protocol.Command) error {
	if err := pc.server.hub.SendJSONToConnection(pc.conn, cmd); err != nil {
		pc.logger.Warn("failed to queue bridge command", zap.String("op", cmd.Op), zap.Error(err))
		return err
	}
	return nil
}

func (pc *pageConn) post(target, targetOrigin string, msg protocol.Message) {
	pc.send(protocol.Command{Op: protocol.OpPost, Target: target, TargetOrigin: targetOrigin, Data: msg})
}

// SetAgentVisible implements container.Surface.
func (pc *pageConn) SetAgentVisible(visible bool) {
	pc.send(protocol.Command{Op: protocol.OpAgentVisible, Visible: &visible})
}

// SetTitle implements container.Surface.
func (pc *pageConn) SetTitle(title string) {
	pc.send(protocol.Command{Op: protocol.OpSetTitle, Title: title})
}

// ShowContainer implements container.Surface.
func (pc *pageConn) ShowContainer() {
	pc.send(protocol.Command{Op: protocol.OpShowContainer})
}

// Location implements history.Browser.
func (pc *pageConn) Location() string { return pc.location }

// ReplaceState implements history.Browser. The recorded location is updated
// right away; the bridge reports the real one with its next event.
func (pc *pageConn) ReplaceState(state history.State, url string) error {
	if err := pc.send(protocol.Command{Op: protocol.OpReplaceState, State: state, URL: url}); err != nil {
		return err
	}
	pc.location = url
	return nil
}

type frontendPort struct{ pc *pageConn }

func (f frontendPort) Load(url string) {
	f.pc.frontendLocation = ""
	f.pc.send(protocol.Command{Op: protocol.OpLoadFrontend, URL: url})
}

func (f frontendPort) Post(msg protocol.Message) {
	f.pc.post(protocol.SurfaceFrontend, f.pc.server.origins.Frontend(), msg)
}

func (f frontendPort) LiveURL() (string, bool) {
	return f.pc.frontendLocation, f.pc.frontendLocation != ""
}

type agentPort struct{ pc *pageConn }

func (a agentPort) Post(msg protocol.Message) {
	a.pc.post(protocol.SurfaceAgent, a.pc.server.origins.Agent(), msg)
}
