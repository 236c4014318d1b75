//go:build !linux

package sensor

import (
	"fmt"

	"go.uber.org/zap"

	"presencetv/internal/clock"
)

// Trigger is unavailable off-Linux; the GPIO character device is a Linux
// facility. Use the UART transport or the fake for development.
type Trigger struct{}

// NewTrigger always fails on non-Linux platforms.
func NewTrigger(chipName string, pin int, activeLow bool, clk clock.Clock, logger *zap.Logger) (*Trigger, error) {
	return nil, fmt.Errorf("gpio trigger sensor requires linux: %w", ErrHardwareUnavailable)
}

func (t *Trigger) Sample() (Sample, error) {
	return Sample{}, ErrHardwareUnavailable
}

func (t *Trigger) Reset() error { return ErrHardwareUnavailable }

func (t *Trigger) Close() error { return nil }
