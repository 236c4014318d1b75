// Package maintenance periodically restarts the presence sensor's firmware.
// The radar drifts into a stuck-detection state after long uptimes; a
// routine restart keeps it honest.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"presencetv/internal/clock"
)

// Resetter restarts the sensor firmware. The UART transport implements it;
// the bare trigger pin makes it a no-op.
type Resetter interface {
	Reset() error
}

// Scheduler emits maintenance ticks and performs the reset when the event
// loop decides it is safe to run one.
type Scheduler struct {
	resetter Resetter
	interval time.Duration
	quiet    time.Duration
	clk      clock.Clock
	logger   *zap.Logger

	ticks chan time.Time
}

// NewScheduler creates a scheduler firing every interval. After each reset
// the sensor gets quiet to come back before its readings count again.
func NewScheduler(resetter Resetter, interval, quiet time.Duration, clk clock.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		resetter: resetter,
		interval: interval,
		quiet:    quiet,
		clk:      clk,
		logger:   logger.Named("maintenance"),
		ticks:    make(chan time.Time, 1),
	}
}

// Ticks delivers maintenance due times. A tick the event loop has not
// drained yet is not duplicated.
func (s *Scheduler) Ticks() <-chan time.Time {
	return s.ticks
}

// Start runs the tick producer until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := s.clk.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.Chan():
				select {
				case s.ticks <- t:
				default:
					// Event loop still busy with the previous tick.
				}
			}
		}
	}()
}

// Perform restarts the sensor and returns the end of the quiet period during
// which presence loss must be ignored.
func (s *Scheduler) Perform(now time.Time) (time.Time, error) {
	s.logger.Debug("Running sensor maintenance")

	if err := s.resetter.Reset(); err != nil {
		return time.Time{}, fmt.Errorf("sensor reset: %w", err)
	}

	until := now.Add(s.quiet)
	s.logger.Info("Sensor maintenance complete",
		zap.Time("suppress_until", until))
	return until, nil
}
