// Package tv controls a network-attached television. The only power
// primitive the remote protocol offers is a toggle, so callers must query
// state before sending it.
package tv

import (
	"context"
	"errors"
)

// State is the observed power state of the television.
type State int

const (
	// StateUnreachable means the TV did not answer on the network. Deep
	// standby and unplugged look identical from here.
	StateUnreachable State = iota
	// StateStandby means the TV answered but reports its panel off.
	StateStandby
	// StateOn means the TV reports its panel on.
	StateOn
)

func (s State) String() string {
	switch s {
	case StateOn:
		return "on"
	case StateStandby:
		return "standby"
	case StateUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// ErrUnreachable is returned when the TV cannot be contacted at all.
var ErrUnreachable = errors.New("tv unreachable")

// ErrProtocol is returned when the TV answered but the exchange failed.
var ErrProtocol = errors.New("tv protocol error")

// Controller is the device-facing surface the power engine drives.
type Controller interface {
	// QueryState reports the current power state. It never guesses: a
	// failed probe maps to StateUnreachable.
	QueryState(ctx context.Context) State

	// TogglePower sends the power toggle key. The caller owns knowing
	// which direction the toggle will move the TV.
	TogglePower(ctx context.Context) error

	// Wake attempts to rouse the TV's network stack from deep standby.
	Wake(ctx context.Context) error

	Close() error
}
