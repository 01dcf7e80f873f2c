// Package visibility tracks whether the agent surface is shown.
package visibility

import (
	"context"

	"go.uber.org/zap"
)

// State is the visibility of the agent surface.
type State string

const (
	Hidden  State = "hidden"
	Visible State = "visible"
)

// Effect runs after every transition, in registration order.
type Effect func(ctx context.Context, visible bool)

// Machine is the two-state agent visibility machine. The only way to change
// state is a transition, so effects always run.
type Machine struct {
	state   State
	effects []Effect
	logger  *zap.Logger
}

// New creates a machine in the Hidden state.
func New(logger *zap.Logger, effects ...Effect) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{state: Hidden, effects: effects, logger: logger}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Visible reports whether the agent surface is shown.
func (m *Machine) Visible() bool { return m.state == Visible }

// Toggle flips the state and runs the effects.
func (m *Machine) Toggle(ctx context.Context) State {
	if m.state == Visible {
		m.state = Hidden
	} else {
		m.state = Visible
	}
	m.logger.Debug("agent visibility toggled", zap.String("state", string(m.state)))

	visible := m.Visible()
	for _, effect := range m.effects {
		effect(ctx, visible)
	}
	return m.state
}

// Reconcile toggles only when the current state differs from want, and
// reports whether it did.
func (m *Machine) Reconcile(ctx context.Context, want bool) bool {
	if m.Visible() == want {
		return false
	}
	m.Toggle(ctx)
	return true
}
