package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wppcrm/internal/bus"
)

// State is the realtime connection state shown in the status bar.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	AuthRequired State = "AUTH_REQUIRED"
)

var validTransitions = map[State][]State{
	Disconnected: {Connecting, AuthRequired},
	Connecting:   {Connected, Reconnecting, Disconnected, AuthRequired},
	Connected:    {Reconnecting, Disconnected, AuthRequired},
	Reconnecting: {Connecting, Disconnected, AuthRequired},
	AuthRequired: {Connecting, Disconnected},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine in the Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state. Moving to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindConnection, StatusChange{From: from, To: to}))
	}
	return nil
}

// StatusChange is the payload for connection status events.
type StatusChange struct {
	From State
	To   State
}
