// Package telemetry publishes controller events over MQTT for dashboards
// and debugging. Publishing is best-effort: a broker outage never blocks the
// control loop.
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// TransitionEvent reports an occupancy state change.
type TransitionEvent struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Intent   string    `json:"intent,omitempty"`
	Deadline time.Time `json:"off_deadline,omitempty"`
}

// OutcomeEvent reports the result of a power sequence.
type OutcomeEvent struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Intent     string    `json:"intent"`
	Success    bool      `json:"success"`
	Attempts   int       `json:"attempts"`
	FinalState string    `json:"final_state"`
}

// HeartbeatEvent reports liveness and counters.
type HeartbeatEvent struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Occupancy   string    `json:"occupancy"`
	TVState     string    `json:"tv_state"`
	Samples     uint64    `json:"samples"`
	SensorFails uint64    `json:"sensor_failures"`
	Uptime      string    `json:"uptime"`
}

// NewTransitionEvent stamps a transition with an event ID.
func NewTransitionEvent(at time.Time, from, to, intent string, deadline time.Time) TransitionEvent {
	return TransitionEvent{
		ID:       uuid.NewString(),
		Time:     at,
		From:     from,
		To:       to,
		Intent:   intent,
		Deadline: deadline,
	}
}

// NewOutcomeEvent stamps a power result with an event ID.
func NewOutcomeEvent(at time.Time, intent string, success bool, attempts int, finalState string) OutcomeEvent {
	return OutcomeEvent{
		ID:         uuid.NewString(),
		Time:       at,
		Intent:     intent,
		Success:    success,
		Attempts:   attempts,
		FinalState: finalState,
	}
}

// NewHeartbeatEvent stamps a heartbeat with an event ID.
func NewHeartbeatEvent(at time.Time, occupancyState, tvState string, samples, sensorFails uint64, uptime time.Duration) HeartbeatEvent {
	return HeartbeatEvent{
		ID:          uuid.NewString(),
		Time:        at,
		Occupancy:   occupancyState,
		TVState:     tvState,
		Samples:     samples,
		SensorFails: sensorFails,
		Uptime:      uptime.String(),
	}
}

// Sink receives controller events.
type Sink interface {
	Transition(TransitionEvent)
	Outcome(OutcomeEvent)
	Heartbeat(HeartbeatEvent)
	Close() error
}

// NopSink discards everything. Used when MQTT is disabled.
type NopSink struct{}

func (NopSink) Transition(TransitionEvent) {}
func (NopSink) Outcome(OutcomeEvent)       {}
func (NopSink) Heartbeat(HeartbeatEvent)   {}
func (NopSink) Close() error               { return nil }
