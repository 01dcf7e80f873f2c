// Package container coordinates the frontend and agent documents hosted by
// one container page.
package container

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/extraction"
	"github.com/xiaot623/gogo/container/internal/history"
	"github.com/xiaot623/gogo/container/internal/metrics"
	"github.com/xiaot623/gogo/container/internal/protocol"
	"github.com/xiaot623/gogo/container/internal/session"
	"github.com/xiaot623/gogo/container/internal/tracker"
	"github.com/xiaot623/gogo/container/internal/visibility"
)

// Options is the static configuration of one container page.
type Options struct {
	// FrontendURL is the frontend base address. Its origin is trusted.
	FrontendURL string
	// AgentURL is the agent document address. Its origin is trusted.
	AgentURL string
	// ContainerMarkers identify the container's own address.
	ContainerMarkers []string
	// TitleBrand is appended to derived page titles.
	TitleBrand string
	// ExtractDebounce is the minimum interval between extractions.
	ExtractDebounce time.Duration
	// SettleDelay postpones post-load actions. Zero runs them immediately.
	SettleDelay time.Duration
}

// Deps are the collaborators of an orchestrator.
type Deps struct {
	Frontend FrontendDocument
	Agent    AgentDocument
	Surface  Surface
	Browser  history.Browser
	// Slot persists state across reloads. Optional.
	Slot *session.Slot
	// Policy filters forwarded frontend messages. Nil forwards everything.
	Policy  ForwardPolicy
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	Now          func() time.Time
	NewRequestID func() string
	// Schedule runs fn after d on the page's event loop.
	Schedule func(d time.Duration, fn func(ctx context.Context))
}

// Orchestrator owns the state of one container page. It is not safe for
// concurrent use; Page serializes every call onto one goroutine.
type Orchestrator struct {
	opts    Options
	deps    Deps
	origins *AllowList
	logger  *zap.Logger

	tracker    *tracker.Tracker
	extractor  *extraction.Coordinator
	history    *history.Bridge
	visibility *visibility.Machine

	currentFrontendURL string
	lastKnownURL       string
	restoreAgent       bool

	frontendLoaded bool
	agentLoaded    bool
	ready          bool
}

// New creates an orchestrator.
func New(opts Options, deps Deps) (*Orchestrator, error) {
	if deps.Frontend == nil || deps.Agent == nil || deps.Surface == nil || deps.Browser == nil {
		return nil, errors.New("container: frontend, agent, surface and browser are required")
	}
	origins, err := NewAllowList(opts.FrontendURL, opts.AgentURL)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewRequestID == nil {
		deps.NewRequestID = protocol.NewRequestID
	}

	o := &Orchestrator{
		opts:    opts,
		deps:    deps,
		origins: origins,
		logger:  deps.Logger,
		tracker: tracker.New(deps.Logger),
		history: history.NewBridge(deps.Browser, deps.Now, deps.Logger),
	}
	o.extractor = extraction.New(extraction.Config{
		Window:       opts.ExtractDebounce,
		Now:          deps.Now,
		NewRequestID: deps.NewRequestID,
	}, deps.Frontend.LiveURL, o.postFrontend, deps.Logger)
	o.visibility = visibility.New(deps.Logger,
		func(_ context.Context, visible bool) { o.deps.Surface.SetAgentVisible(visible) },
		func(ctx context.Context, _ bool) { o.save(ctx) },
		func(_ context.Context, visible bool) {
			if o.currentFrontendURL != "" {
				o.history.Sync(o.currentFrontendURL, visible)
			}
		},
	)
	return o, nil
}

// CurrentFrontendURL is the address the frontend was last pointed at or
// reported.
func (o *Orchestrator) CurrentFrontendURL() string { return o.currentFrontendURL }

// LastKnownURL is the last frontend address the container acted on.
func (o *Orchestrator) LastKnownURL() string { return o.lastKnownURL }

// AgentVisible reports whether the agent panel is shown.
func (o *Orchestrator) AgentVisible() bool { return o.visibility.Visible() }

// Ready reports whether both documents have loaded.
func (o *Orchestrator) Ready() bool { return o.ready }

// Snapshot returns the state that would be persisted now.
func (o *Orchestrator) Snapshot() session.ContainerState {
	return session.ContainerState{
		CurrentFrontendURL: o.currentFrontendURL,
		LastKnownURL:       o.lastKnownURL,
		AgentVisible:       o.visibility.Visible(),
	}
}

func (o *Orchestrator) save(ctx context.Context) {
	if o.deps.Slot == nil {
		return
	}
	o.deps.Slot.Save(ctx, o.Snapshot())
}

func (o *Orchestrator) postFrontend(msg protocol.Message) {
	o.deps.Frontend.Post(msg)
	o.deps.Metrics.ObserveOutbound(protocol.SurfaceFrontend, msg.MessageType())
}

func (o *Orchestrator) postAgent(msg protocol.Message) {
	o.deps.Agent.Post(msg)
	msgType := msg.MessageType()
	if _, forwarded := msg.(*protocol.Raw); forwarded {
		msgType = "forwarded"
	}
	o.deps.Metrics.ObserveOutbound(protocol.SurfaceAgent, msgType)
}

// loadFrontend points the frontend at target. Paths starting with "/" are
// resolved against the frontend base. lastKnownURL is left alone so the
// frontend's own report of the new address is still acted on.
func (o *Orchestrator) loadFrontend(target string) string {
	u := target
	if strings.HasPrefix(target, "/") {
		u = o.joinBase(target)
	}
	o.currentFrontendURL = u
	o.deps.Frontend.Load(u)
	o.deps.Surface.SetTitle(PageTitle(u, o.opts.TitleBrand))
	return u
}

func (o *Orchestrator) joinBase(path string) string {
	base := strings.TrimSuffix(o.opts.FrontendURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (o *Orchestrator) requestExtraction() extraction.Outcome {
	outcome := o.extractor.Request(o.lastKnownURL)
	o.deps.Metrics.ObserveExtraction(string(outcome))
	return outcome
}

// after runs fn once the settle delay has passed.
func (o *Orchestrator) after(ctx context.Context, fn func(ctx context.Context)) {
	if o.opts.SettleDelay <= 0 || o.deps.Schedule == nil {
		fn(ctx)
		return
	}
	o.deps.Schedule(o.opts.SettleDelay, fn)
}
