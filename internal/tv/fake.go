package tv

import (
	"context"
	"sync"
)

// Fake is an in-memory Controller that models the real toggle semantics:
// KEY_POWER flips On and Standby, and an unreachable TV swallows everything
// until Wake succeeds.
type Fake struct {
	mu          sync.Mutex
	state       State
	wakeWorks   bool
	toggleErr   error
	toggles     int
	wakes       int
	queryStates []State
}

// NewFake creates a fake TV in the given state.
func NewFake(initial State) *Fake {
	return &Fake{state: initial, wakeWorks: true}
}

// SetState moves the fake to a state directly.
func (f *Fake) SetState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

// SetWakeWorks controls whether Wake pulls the TV out of Unreachable.
func (f *Fake) SetWakeWorks(works bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakeWorks = works
}

// SetToggleError makes TogglePower fail until cleared.
func (f *Fake) SetToggleError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggleErr = err
}

// Toggles reports how many toggle presses landed.
func (f *Fake) Toggles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggles
}

// Wakes reports how many wake attempts were made.
func (f *Fake) Wakes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wakes
}

// QueryLog returns every state observed through QueryState.
func (f *Fake) QueryLog() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, len(f.queryStates))
	copy(out, f.queryStates)
	return out
}

func (f *Fake) QueryState(ctx context.Context) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryStates = append(f.queryStates, f.state)
	return f.state
}

func (f *Fake) TogglePower(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return f.toggleErr
	}
	f.toggles++
	switch f.state {
	case StateOn:
		f.state = StateStandby
	case StateStandby:
		f.state = StateOn
	case StateUnreachable:
		// Key press lost; nothing to receive it.
	}
	return nil
}

func (f *Fake) Wake(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakes++
	if f.state == StateUnreachable && f.wakeWorks {
		f.state = StateStandby
	}
	return nil
}

func (f *Fake) Close() error { return nil }
