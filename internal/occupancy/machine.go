// Package occupancy turns raw presence samples into debounced room state and
// power intents. The machine performs no I/O: it is driven by the
// orchestrator's event loop and returns transitions as values.
package occupancy

import (
	"time"

	"go.uber.org/zap"

	"presencetv/internal/sensor"
)

// State is the debounced occupancy of the room.
type State int

const (
	// StateVacant is the initial state: no presence, TV should be off.
	StateVacant State = iota
	// StateOccupied means presence has held through the debounce window.
	StateOccupied
	// StateVacating means presence was lost and the delayed-off timer is
	// counting down.
	StateVacating
)

func (s State) String() string {
	switch s {
	case StateVacant:
		return "vacant"
	case StateOccupied:
		return "occupied"
	case StateVacating:
		return "vacating"
	default:
		return "unknown"
	}
}

// Intent is the power action requested by a transition.
type Intent int

const (
	// IntentNone marks transitions with no power action (e.g. entering
	// Vacating, which only starts the timer).
	IntentNone Intent = iota
	// IntentEnsureOn requests the appliance be brought to the on state.
	IntentEnsureOn
	// IntentEnsureOff requests the appliance be brought to standby.
	IntentEnsureOff
)

func (i Intent) String() string {
	switch i {
	case IntentEnsureOn:
		return "ensure_on"
	case IntentEnsureOff:
		return "ensure_off"
	default:
		return "none"
	}
}

// Transition records a state change and the intent it carries.
type Transition struct {
	From   State
	To     State
	At     time.Time
	Intent Intent
}

// Machine owns the occupancy state and the delayed-off deadline. It is not
// safe for concurrent use; a single event-loop goroutine must drive it.
type Machine struct {
	logger   *zap.Logger
	debounce time.Duration
	offDelay time.Duration

	state    State
	deadline time.Time

	// Debounce bookkeeping. A deviation from the debounced value opens a
	// window; it commits once a deviating sample lands at least debounce
	// after the window opened, and is abandoned once the old value has
	// persisted that long since the last deviating sample. A single
	// dropout therefore does not reset the window clock.
	debounced    bool
	pendingOpen  bool
	pendingSince time.Time
	pendingLast  time.Time

	suppressUntil time.Time
}

// NewMachine creates a machine in the Vacant state.
func NewMachine(debounce, offDelay time.Duration, logger *zap.Logger) *Machine {
	return &Machine{
		logger:   logger.Named("occupancy"),
		debounce: debounce,
		offDelay: offDelay,
		state:    StateVacant,
	}
}

// State returns the current occupancy state.
func (m *Machine) State() State {
	return m.state
}

// Deadline returns the delayed-off deadline; zero unless Vacating.
func (m *Machine) Deadline() time.Time {
	if m.state != StateVacating {
		return time.Time{}
	}
	return m.deadline
}

// SuppressUntil ignores absent samples until t. The maintenance scheduler
// calls this around a sensor reset so the reset's quiet period is never
// mistaken for a vacancy.
func (m *Machine) SuppressUntil(t time.Time) {
	m.suppressUntil = t
	m.logger.Debug("Suppressing presence loss", zap.Time("until", t))
}

// OnSample feeds one raw presence reading through the debouncer and returns
// any resulting transitions.
func (m *Machine) OnSample(s sensor.Sample) []Transition {
	if !s.Present && s.Time.Before(m.suppressUntil) {
		// Quiet period after a sensor reset: missing or absent readings
		// carry no information.
		return nil
	}

	raw := s.Present
	if raw == m.debounced {
		if m.pendingOpen && s.Time.Sub(m.pendingLast) >= m.debounce {
			// The deviation never held; drop it.
			m.pendingOpen = false
		}
		return nil
	}

	if !m.pendingOpen {
		m.pendingOpen = true
		m.pendingSince = s.Time
	}
	m.pendingLast = s.Time

	if s.Time.Sub(m.pendingSince) < m.debounce {
		return nil
	}

	m.pendingOpen = false
	m.debounced = raw
	if raw {
		return m.presenceGained(s.Time)
	}
	return m.presenceLost(s.Time)
}

// Tick checks the delayed-off deadline. Call at least once per scheduling
// granularity.
func (m *Machine) Tick(now time.Time) []Transition {
	if m.state != StateVacating || now.Before(m.deadline) {
		return nil
	}

	m.deadline = time.Time{}
	return m.transition(StateVacant, now, IntentEnsureOff)
}

// BeginVacating starts the delayed-off timer from Vacant. Used by the
// startup sync when the TV is found on with nobody in the room.
func (m *Machine) BeginVacating(now time.Time) []Transition {
	if m.state != StateVacant {
		return nil
	}
	m.deadline = now.Add(m.offDelay)
	return m.transition(StateVacating, now, IntentNone)
}

func (m *Machine) presenceGained(now time.Time) []Transition {
	switch m.state {
	case StateVacant:
		return m.transition(StateOccupied, now, IntentEnsureOn)
	case StateVacating:
		// Timer cancelled; the room never actually emptied.
		m.deadline = time.Time{}
		return m.transition(StateOccupied, now, IntentEnsureOn)
	default:
		return nil
	}
}

func (m *Machine) presenceLost(now time.Time) []Transition {
	if m.state != StateOccupied {
		return nil
	}
	m.deadline = now.Add(m.offDelay)
	return m.transition(StateVacating, now, IntentNone)
}

func (m *Machine) transition(to State, at time.Time, intent Intent) []Transition {
	from := m.state
	m.state = to

	m.logger.Info("Occupancy transition",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("intent", intent.String()))

	return []Transition{{From: from, To: to, At: at, Intent: intent}}
}
