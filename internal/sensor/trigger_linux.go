//go:build linux

package sensor

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"

	"presencetv/internal/clock"
)

// Trigger reads the sensor's binary presence pin through the Linux GPIO
// character device.
type Trigger struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	activeLow bool
	clk       clock.Clock
	logger    *zap.Logger
}

// NewTrigger requests the presence pin as an input line.
func NewTrigger(chipName string, pin int, activeLow bool, clk clock.Clock, logger *zap.Logger) (*Trigger, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sensor pin %d: %w", pin, err)
	}

	logger.Info("GPIO trigger sensor initialized",
		zap.String("chip", chipName),
		zap.Int("pin", pin),
		zap.Bool("active_low", activeLow))

	return &Trigger{
		chip:      chip,
		line:      line,
		activeLow: activeLow,
		clk:       clk,
		logger:    logger.Named("trigger"),
	}, nil
}

// Sample reads the pin level.
func (t *Trigger) Sample() (Sample, error) {
	raw, err := t.line.Value()
	if err != nil {
		return Sample{}, fmt.Errorf("read sensor pin: %w", ErrHardwareUnavailable)
	}

	present := raw == 1
	if t.activeLow {
		present = raw == 0
	}
	return Sample{Time: t.clk.Now(), Present: present}, nil
}

// Reset is a no-op: the bare trigger pin has no command channel, so firmware
// resets only apply to the UART transport.
func (t *Trigger) Reset() error {
	t.logger.Debug("Reset requested on trigger transport, nothing to do")
	return nil
}

// Close releases the pin and chip.
func (t *Trigger) Close() error {
	var errs []error
	if t.line != nil {
		if err := t.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor pin: %w", err))
		}
	}
	if t.chip != nil {
		if err := t.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
