package container

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/protocol"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// HandleMessage routes one message received by the container page. Messages
// from origins outside the allow-list are dropped. When the frontend and agent
// share an origin the message is offered to both handlers.
func (o *Orchestrator) HandleMessage(ctx context.Context, origin string, data json.RawMessage) {
	fromAgent := o.origins.IsAgent(origin)
	fromFrontend := o.origins.IsFrontend(origin)
	if !fromAgent && !fromFrontend {
		o.logger.Debug("dropping message from untrusted origin", zap.String("origin", origin))
		o.deps.Metrics.ObserveInbound("untrusted", "unknown", "dropped")
		return
	}

	if fromAgent {
		o.routeAgent(ctx, data)
	}
	if fromFrontend {
		o.routeFrontend(ctx, origin, data)
	}
}

func (o *Orchestrator) routeAgent(ctx context.Context, data json.RawMessage) {
	msg, err := protocol.DecodeAgent(data)
	if err != nil {
		o.logger.Warn("malformed agent message", zap.Error(err))
		o.deps.Metrics.ObserveInbound(protocol.SurfaceAgent, "unknown", "malformed")
		return
	}

	switch m := msg.(type) {
	case protocol.Navigate:
		o.observeAgent(protocol.TypeNavigate, m.Path != "")
		if m.Path == "" {
			o.logger.Warn("navigate without a path")
			return
		}
		u := o.loadFrontend(m.Path)
		o.logger.Info("agent navigation", zap.String("url", u))
	case protocol.UpdateURL:
		o.observeAgent(protocol.TypeUpdateURL, m.URL != "")
		if m.URL == "" {
			o.logger.Warn("url update without an address")
			return
		}
		u := o.loadFrontend(m.URL)
		o.logger.Info("agent url update", zap.String("url", u))
	case protocol.FetchDOMData:
		o.observeAgent(protocol.TypeFetchDOMData, true)
		o.tracker.Open(m.Request)
		o.postFrontend(protocol.NewFrontendRequest(protocol.TypeRequestBodyHTML, o.deps.NewRequestID()))
	case protocol.RequestHTMLExtraction:
		o.observeAgent(protocol.TypeRequestHTMLExtraction, true)
		o.requestExtraction()
	case protocol.ExecuteAction:
		o.observeAgent(protocol.TypeExecuteAction, true)
		o.postFrontend(protocol.NewExecuteWebsiteAction(m.Payload))
	case protocol.UnknownAgentMessage:
		o.logger.Debug("ignoring agent message", zap.String("type", m.Type))
		o.deps.Metrics.ObserveInbound(protocol.SurfaceAgent, "other", "ignored")
	default:
		o.logger.Error("unhandled agent message", zap.String("go_type", fmt.Sprintf("%T", msg)))
	}
}

func (o *Orchestrator) observeAgent(msgType string, handled bool) {
	outcome := "handled"
	if !handled {
		outcome = "ignored"
	}
	o.deps.Metrics.ObserveInbound(protocol.SurfaceAgent, msgType, outcome)
}

func (o *Orchestrator) routeFrontend(ctx context.Context, origin string, data json.RawMessage) {
	msg, err := protocol.DecodeFrontend(data)
	if err != nil {
		o.logger.Warn("malformed frontend message", zap.Error(err))
		o.deps.Metrics.ObserveInbound(protocol.SurfaceFrontend, "unknown", "malformed")
		return
	}

	switch m := msg.(type) {
	case protocol.URLReport:
		o.deps.Metrics.ObserveInbound(protocol.SurfaceFrontend, m.Type, "handled")
		o.handleURLReport(ctx, m.URL)
	case protocol.BodyHTMLResponse:
		o.deps.Metrics.ObserveInbound(protocol.SurfaceFrontend, protocol.TypeBodyHTMLResponse, "handled")
		o.handleContent(m)
	case protocol.ClickEvent:
		o.deps.Metrics.ObserveInbound(protocol.SurfaceFrontend, protocol.TypeClickEvent, "handled")
		o.postAgent(protocol.NewUserClickEvent(m.Click))
	case protocol.UnrecognizedFrontendMessage:
		o.forward(ctx, origin, m)
	default:
		o.logger.Error("unhandled frontend message", zap.String("go_type", fmt.Sprintf("%T", msg)))
	}
}

// handleURLReport reacts to the frontend reporting its address. Reports of
// the address already acted on are ignored.
func (o *Orchestrator) handleURLReport(ctx context.Context, u string) {
	if u == "" {
		o.logger.Warn("url report without an address")
		return
	}
	if u == o.lastKnownURL {
		o.logger.Debug("url unchanged", zap.String("url", u))
		return
	}

	o.logger.Info("frontend url changed", zap.String("from", o.lastKnownURL), zap.String("to", u))
	o.deps.Surface.SetTitle(PageTitle(u, o.opts.TitleBrand))
	o.lastKnownURL = u
	o.currentFrontendURL = u
	o.history.Sync(u, o.visibility.Visible())
	o.save(ctx)
	o.requestExtraction()
}

// handleContent answers the pending DOM request when there is one and
// otherwise broadcasts the page content. Empty content leaves the pending
// request open.
func (o *Orchestrator) handleContent(m protocol.BodyHTMLResponse) {
	if m.HTML == "" {
		o.logger.Warn("no html data received", zap.String("url", m.URL))
		return
	}

	if resp, ok := o.tracker.Resolve(m.HTML); ok {
		o.logger.Debug("answering dom request", zap.String("url", m.URL))
		o.postAgent(resp)
		return
	}

	title := m.Title
	if title == "" {
		title = titleFromHTML(m.HTML)
	}
	now := o.deps.Now()
	o.postAgent(&protocol.HostPageData{
		Type: protocol.TypeHostPageData,
		Payload: protocol.HostPagePayload{
			URL:         m.URL,
			Title:       title,
			HTML:        m.HTML,
			Timestamp:   now.UTC().Format(timestampLayout),
			ExtractedAt: now.UnixMilli(),
		},
	})
}

// forward passes an unrecognized frontend message to the agent unchanged,
// subject to the forward policy.
func (o *Orchestrator) forward(ctx context.Context, origin string, m protocol.UnrecognizedFrontendMessage) {
	if o.deps.Policy != nil {
		allowed, err := o.deps.Policy.AllowForward(ctx, m.Type, origin)
		if err != nil {
			o.logger.Warn("forward policy failed", zap.String("type", m.Type), zap.Error(err))
			o.deps.Metrics.ObserveInbound(protocol.SurfaceFrontend, "other", "blocked")
			return
		}
		if !allowed {
			o.logger.Debug("forward blocked by policy", zap.String("type", m.Type))
			o.deps.Metrics.ObserveInbound(protocol.SurfaceFrontend, "other", "blocked")
			return
		}
	}
	o.deps.Metrics.ObserveInbound(protocol.SurfaceFrontend, "other", "forwarded")
	o.postAgent(&protocol.Raw{Type: m.Type, Data: m.Raw})
}
