package telemetry

import "sync"

// FakeSink records events for assertions.
type FakeSink struct {
	mu          sync.Mutex
	transitions []TransitionEvent
	outcomes    []OutcomeEvent
	heartbeats  []HeartbeatEvent
}

// NewFakeSink creates an empty recording sink.
func NewFakeSink() *FakeSink { return &FakeSink{} }

func (f *FakeSink) Transition(ev TransitionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, ev)
}

func (f *FakeSink) Outcome(ev OutcomeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, ev)
}

func (f *FakeSink) Heartbeat(ev HeartbeatEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, ev)
}

func (f *FakeSink) Close() error { return nil }

// Transitions returns a copy of the recorded transition events.
func (f *FakeSink) Transitions() []TransitionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TransitionEvent, len(f.transitions))
	copy(out, f.transitions)
	return out
}

// Outcomes returns a copy of the recorded outcome events.
func (f *FakeSink) Outcomes() []OutcomeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OutcomeEvent, len(f.outcomes))
	copy(out, f.outcomes)
	return out
}

// Heartbeats returns a copy of the recorded heartbeat events.
func (f *FakeSink) Heartbeats() []HeartbeatEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]HeartbeatEvent, len(f.heartbeats))
	copy(out, f.heartbeats)
	return out
}
