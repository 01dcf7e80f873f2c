package container

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/container/internal/history"
	"github.com/xiaot623/gogo/container/internal/protocol"
	"github.com/xiaot623/gogo/container/internal/session"
)

const (
	frontendBase   = "http://localhost:3000"
	agentAddr      = "http://localhost:5173/agent"
	frontendOrigin = "http://localhost:3000"
	agentOrigin    = "http://localhost:5173"
	containerAddr  = "http://127.0.0.1:8092/iframe-container.html"
)

type fakeFrontend struct {
	mu     sync.Mutex
	loads  []string
	posts  []protocol.Message
	live   string
	liveOK bool
}

func (f *fakeFrontend) Load(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
}

func (f *fakeFrontend) Post(msg protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, msg)
}

func (f *fakeFrontend) LiveURL() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live, f.liveOK
}

func (f *fakeFrontend) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.posts))
	for _, m := range f.posts {
		out = append(out, m.MessageType())
	}
	return out
}

type fakeAgent struct {
	mu    sync.Mutex
	posts []protocol.Message
}

func (a *fakeAgent) Post(msg protocol.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.posts = append(a.posts, msg)
}

func (a *fakeAgent) messages() []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]protocol.Message(nil), a.posts...)
}

type fakeSurface struct {
	mu       sync.Mutex
	visible  []bool
	titles   []string
	shown    int
	sequence []string
}

func (s *fakeSurface) SetAgentVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = append(s.visible, visible)
	s.sequence = append(s.sequence, "agent_visible")
}

func (s *fakeSurface) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
}

func (s *fakeSurface) ShowContainer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown++
	s.sequence = append(s.sequence, "show")
}

func (s *fakeSurface) lastTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.titles) == 0 {
		return ""
	}
	return s.titles[len(s.titles)-1]
}

type replaced struct {
	state history.State
	url   string
}

type fakeBrowser struct {
	location string
	replaced []replaced
}

func (b *fakeBrowser) Location() string { return b.location }

func (b *fakeBrowser) ReplaceState(state history.State, url string) error {
	b.replaced = append(b.replaced, replaced{state: state, url: url})
	b.location = url
	return nil
}

func (b *fakeBrowser) last() replaced {
	return b.replaced[len(b.replaced)-1]
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakePolicy struct {
	allow map[string]bool
	err   error
}

func (p fakePolicy) AllowForward(_ context.Context, msgType, _ string) (bool, error) {
	return p.allow[msgType], p.err
}

type harness struct {
	orch     *Orchestrator
	frontend *fakeFrontend
	agent    *fakeAgent
	surface  *fakeSurface
	browser  *fakeBrowser
	clock    *fakeClock
	store    session.Store
	slot     *session.Slot
	ids      int
}

type harnessOption func(*Options, *Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		frontend: &fakeFrontend{},
		agent:    &fakeAgent{},
		surface:  &fakeSurface{},
		browser:  &fakeBrowser{location: containerAddr},
		clock:    &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		store:    session.NewMemoryStore(),
	}
	h.slot = session.NewSlot(h.store, "tab-1", 30*time.Second, h.clock.Now, nil)

	o := Options{
		FrontendURL:      frontendBase,
		AgentURL:         agentAddr,
		ContainerMarkers: []string{"iframe-container.html", "127.0.0.1:5500"},
		TitleBrand:       "Lenskart",
		ExtractDebounce:  2 * time.Second,
	}
	d := Deps{
		Frontend: h.frontend,
		Agent:    h.agent,
		Surface:  h.surface,
		Browser:  h.browser,
		Slot:     h.slot,
		Now:      h.clock.Now,
		NewRequestID: func() string {
			h.ids++
			return "req_" + string(rune('a'+h.ids-1))
		},
	}
	for _, opt := range opts {
		opt(&o, &d)
	}

	orch, err := New(o, d)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) fromFrontend(t *testing.T, msg any) {
	t.Helper()
	h.orch.HandleMessage(context.Background(), frontendOrigin, mustJSON(t, msg))
}

func (h *harness) fromAgent(t *testing.T, msg any) {
	t.Helper()
	h.orch.HandleMessage(context.Background(), agentOrigin, mustJSON(t, msg))
}

func (h *harness) loadBoth() {
	h.orch.SurfaceLoaded(context.Background(), protocol.SurfaceFrontend)
	h.orch.SurfaceLoaded(context.Background(), protocol.SurfaceAgent)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
