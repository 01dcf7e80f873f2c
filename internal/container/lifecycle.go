package container

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/history"
	"github.com/xiaot623/gogo/container/internal/protocol"
)

// InitInput describes the host page at the moment it opened.
type InitInput struct {
	// Location is the host page address.
	Location string
	// HistoryState is the state of the current history entry, if any.
	HistoryState json.RawMessage
}

// Init chooses the initial frontend address and loads it. The first source
// that yields an address wins: the "frontend" query parameter, a container
// history entry, a host address that is not the container itself, a fresh
// persisted snapshot, then the frontend base. The agent stays hidden until
// both documents have loaded.
func (o *Orchestrator) Init(ctx context.Context, in InitInput) {
	frontendURL, restoreAgent, source := o.resolveInitial(ctx, in)
	o.logger.Info("container initialized",
		zap.String("frontend_url", frontendURL),
		zap.String("source", source),
		zap.Bool("restore_agent", restoreAgent))

	o.currentFrontendURL = frontendURL
	o.deps.Frontend.Load(frontendURL)
	o.deps.Surface.SetTitle(PageTitle(frontendURL, o.opts.TitleBrand))
	o.lastKnownURL = frontendURL
	o.history.Sync(frontendURL, o.visibility.Visible())
	o.restoreAgent = restoreAgent
}

func (o *Orchestrator) resolveInitial(ctx context.Context, in InitInput) (string, bool, string) {
	if u, err := url.Parse(in.Location); err == nil {
		q := u.Query()
		if p := q.Get("frontend"); p != "" {
			if decoded, err := url.QueryUnescape(p); err == nil {
				p = decoded
			}
			return o.joinBase(p), q.Get("agent") == "open", "query"
		}
	}

	if st, ok := history.Decode(in.HistoryState); ok {
		target := st.FrontendURL
		if target == "" {
			target = in.Location
		}
		return target, st.AgentVisible, "history"
	}

	if in.Location != "" && !o.isContainerAddress(in.Location) {
		return in.Location, false, "address"
	}

	if o.deps.Slot != nil {
		if st, ok := o.deps.Slot.Restore(ctx); ok && st.CurrentFrontendURL != "" && st.CurrentFrontendURL != o.opts.FrontendURL {
			return st.CurrentFrontendURL, st.AgentVisible, "session"
		}
	}

	return o.opts.FrontendURL, false, "default"
}

func (o *Orchestrator) isContainerAddress(location string) bool {
	for _, marker := range o.opts.ContainerMarkers {
		if marker != "" && strings.Contains(location, marker) {
			return true
		}
	}
	return false
}

// SurfaceLoaded records that one of the documents finished loading. Once both
// have loaded the container is shown, the frontend post-load actions run and
// the restored agent visibility is replayed. Later frontend loads rerun
// the post-load actions.
func (o *Orchestrator) SurfaceLoaded(ctx context.Context, surface string) {
	switch surface {
	case protocol.SurfaceFrontend:
		o.frontendLoaded = true
	case protocol.SurfaceAgent:
		o.agentLoaded = true
	default:
		o.logger.Warn("load event for unknown surface", zap.String("surface", surface))
		return
	}

	if !o.frontendLoaded || !o.agentLoaded {
		return
	}

	if !o.ready {
		o.ready = true
		o.deps.Surface.ShowContainer()
		o.afterFrontendLoad(ctx)
		if o.restoreAgent {
			o.restoreAgent = false
			o.after(ctx, func(ctx context.Context) {
				o.visibility.Reconcile(ctx, true)
			})
		}
		return
	}

	if surface == protocol.SurfaceFrontend {
		o.afterFrontendLoad(ctx)
	}
}

func (o *Orchestrator) afterFrontendLoad(ctx context.Context) {
	o.after(ctx, func(context.Context) {
		o.postFrontend(protocol.NewFrontendRequest(protocol.TypeSetupClickMonitoring, o.deps.NewRequestID()))
		o.requestExtraction()
	})
}

// PopState restores the frontend address and agent visibility recorded in a
// container history entry. Other entries are ignored.
func (o *Orchestrator) PopState(ctx context.Context, raw json.RawMessage) {
	st, ok := o.history.PopState(raw)
	if !ok {
		return
	}
	o.logger.Info("restoring history entry",
		zap.String("frontend_url", st.FrontendURL),
		zap.Bool("agent_visible", st.AgentVisible))

	o.currentFrontendURL = st.FrontendURL
	o.deps.Frontend.Load(st.FrontendURL)
	o.deps.Surface.SetTitle(PageTitle(st.FrontendURL, o.opts.TitleBrand))
	o.lastKnownURL = st.FrontendURL
	o.visibility.Reconcile(ctx, st.AgentVisible)
}

// VisibilityChanged persists state when the host page is hidden.
func (o *Orchestrator) VisibilityChanged(ctx context.Context, hidden bool) {
	if hidden {
		o.save(ctx)
	}
}

// Unload persists state before the host page goes away.
func (o *Orchestrator) Unload(ctx context.Context) {
	o.save(ctx)
}

// ToggleAgent flips the agent panel.
func (o *Orchestrator) ToggleAgent(ctx context.Context) {
	o.visibility.Toggle(ctx)
}

// RequestURLCheck asks the frontend to report its current address.
func (o *Orchestrator) RequestURLCheck(context.Context) {
	o.postFrontend(protocol.NewFrontendRequest(protocol.TypeRequestCurrentURL, o.deps.NewRequestID()))
}
