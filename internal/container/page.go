package container

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is one unit of work run on a page's loop.
type Event func(ctx context.Context, o *Orchestrator)

// Page runs an orchestrator on its own goroutine. Every event runs to
// completion before the next one starts.
type Page struct {
	ID     string
	orch   *Orchestrator
	events chan Event
	done   chan struct{}
	logger *zap.Logger
}

// NewPage creates a page. Scheduled work is posted back onto the page loop
// unless deps.Schedule is already set.
func NewPage(id string, opts Options, deps Deps, buffer int) (*Page, error) {
	if buffer <= 0 {
		buffer = 64
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.With(zap.String("page_id", id))

	p := &Page{
		ID:     id,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		logger: deps.Logger,
	}
	if deps.Schedule == nil {
		deps.Schedule = p.schedule
	}

	orch, err := New(opts, deps)
	if err != nil {
		return nil, err
	}
	p.orch = orch
	return p, nil
}

// Run processes events until ctx is cancelled.
func (p *Page) Run(ctx context.Context) {
	defer close(p.done)
	p.logger.Debug("page loop started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("page loop stopped")
			return
		case ev := <-p.events:
			p.dispatch(ctx, ev)
		}
	}
}

func (p *Page) dispatch(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("page event panicked", zap.Any("panic", r))
		}
	}()
	ev(ctx, p.orch)
}

// Post queues ev. It returns false once the loop has stopped.
func (p *Page) Post(ev Event) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case <-p.done:
		return false
	case p.events <- ev:
		return true
	}
}

// Done is closed when the loop has stopped.
func (p *Page) Done() <-chan struct{} { return p.done }

func (p *Page) schedule(d time.Duration, fn func(ctx context.Context)) {
	time.AfterFunc(d, func() {
		p.Post(func(ctx context.Context, _ *Orchestrator) { fn(ctx) })
	})
}
