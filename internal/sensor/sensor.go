// Package sensor abstracts the radar presence sensor behind a sampled
// boolean interface. Two transports are supported: the sensor's binary
// trigger pin (GPIO) and its serial telemetry channel (UART, $JYBSS
// sentences). A fake implementation backs tests.
package sensor

import (
	"errors"
	"time"
)

// ErrHardwareUnavailable indicates the sensor transport (pin or serial port)
// cannot be read. Callers pause sampling and retry with backoff; it is never
// fatal after startup.
var ErrHardwareUnavailable = errors.New("sensor hardware unavailable")

// Sample is a single presence reading. Samples are ephemeral: produced once
// per sample tick and consumed once by the debouncer.
type Sample struct {
	Time    time.Time
	Present bool
}

// Source produces presence samples and accepts maintenance resets.
type Source interface {
	// Sample returns the current presence reading. Returns
	// ErrHardwareUnavailable when the transport cannot be read.
	Sample() (Sample, error)

	// Reset reinitializes the sensor firmware. Used by the periodic
	// maintenance tick to clear drift from electrical interference.
	// Transports without a command channel treat this as a no-op.
	Reset() error

	// Close releases the transport.
	Close() error
}
