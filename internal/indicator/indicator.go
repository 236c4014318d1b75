// Package indicator drives the status LED that mirrors occupancy: it fades
// in when the room becomes occupied and fades out as it empties.
package indicator

import "time"

// Driver is a dimmable light. Brightness is 0-100; a fade replaces any fade
// still in progress.
type Driver interface {
	// FadeTo ramps the LED to brightness over d. FadeTo(b, 0) jumps.
	FadeTo(brightness int, d time.Duration) error
	// Brightness reports the current target brightness.
	Brightness() int
	Close() error
}

// Noop is a Driver for installations without an LED wired up.
type Noop struct{}

func (Noop) FadeTo(int, time.Duration) error { return nil }
func (Noop) Brightness() int                 { return 0 }
func (Noop) Close() error                    { return nil }

// clamp bounds brightness to the 0-100 duty range.
func clamp(b int) int {
	if b < 0 {
		return 0
	}
	if b > 100 {
		return 100
	}
	return b
}
