// Package orchestrator runs the control loop: sensor samples in, occupancy
// transitions through the state machine, power intents out. All state lives
// on one event-loop goroutine; device I/O happens off it.
package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/config"
	"presencetv/internal/indicator"
	"presencetv/internal/maintenance"
	"presencetv/internal/occupancy"
	"presencetv/internal/power"
	"presencetv/internal/sensor"
	"presencetv/internal/telemetry"
	"presencetv/internal/tv"
)

const (
	// sensorBackoffStart is the first retry delay after a sampling failure.
	sensorBackoffStart = time.Second
	// sensorBackoffMax caps the exponential backoff.
	sensorBackoffMax = 30 * time.Second
)

// Deps collects everything the manager drives. All fields are required;
// pass Noop/Nop implementations for features that are disabled.
type Deps struct {
	Config      *config.Config
	Clock       clock.Clock
	Source      sensor.Source
	TV          tv.Controller
	Dispatcher  *power.Dispatcher
	Indicator   indicator.Driver
	Maintenance *maintenance.Scheduler
	Sink        telemetry.Sink
}

// Manager owns the event loop. Construction does no I/O; Run blocks until
// the context is cancelled.
type Manager struct {
	cfg         *config.Config
	clk         clock.Clock
	source      sensor.Source
	tv          tv.Controller
	dispatcher  *power.Dispatcher
	indicator   indicator.Driver
	maintenance *maintenance.Scheduler
	sink        telemetry.Sink
	logger      *zap.Logger

	machine *occupancy.Machine
	samples chan sensor.Sample

	sampleCount    atomic.Uint64
	sensorFailures atomic.Uint64
}

// NewManager wires the dependencies together.
func NewManager(deps Deps, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:         deps.Config,
		clk:         deps.Clock,
		source:      deps.Source,
		tv:          deps.TV,
		dispatcher:  deps.Dispatcher,
		indicator:   deps.Indicator,
		maintenance: deps.Maintenance,
		sink:        deps.Sink,
		logger:      logger.Named("orchestrator"),
		machine: occupancy.NewMachine(
			deps.Config.Sensor.Debounce.Std(),
			deps.Config.Control.OffDelay.Std(),
			logger,
		),
		samples: make(chan sensor.Sample, 8),
	}
}

// Run executes the control loop until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	start := m.clk.Now()
	lastTVState := m.syncStartupState(ctx)

	m.maintenance.Start(ctx)
	go m.sampleLoop(ctx)

	ticker := m.clk.NewTicker(m.cfg.Sensor.SampleInterval.Std())
	defer ticker.Stop()

	m.logger.Info("Control loop started",
		zap.String("occupancy", m.machine.State().String()),
		zap.String("tv_state", lastTVState.String()))

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()

		case s := <-m.samples:
			m.apply(ctx, m.machine.OnSample(s))

		case now := <-ticker.Chan():
			m.apply(ctx, m.machine.Tick(now))

		case now := <-m.maintenance.Ticks():
			m.runMaintenance(now)
			m.heartbeat(start, lastTVState)

		case out := <-m.dispatcher.Outcomes():
			lastTVState = out.FinalState
			m.handleOutcome(out)
		}
	}
}

// syncStartupState reconciles a TV that was left on across a restart: with
// nobody in the room it gets the normal delayed-off treatment instead of
// staying on forever.
func (m *Manager) syncStartupState(ctx context.Context) tv.State {
	state := m.tv.QueryState(ctx)
	if state == tv.StateOn && m.machine.State() == occupancy.StateVacant {
		m.logger.Info("TV found on at startup with no occupancy, starting off timer")
		m.apply(ctx, m.machine.BeginVacating(m.clk.Now()))
	}
	return state
}

// sampleLoop polls the sensor. Hardware failures back off exponentially so
// a dead serial port does not spin the loop.
func (m *Manager) sampleLoop(ctx context.Context) {
	interval := m.cfg.Sensor.SampleInterval.Std()
	backoff := sensorBackoffStart
	wait := interval

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clk.After(wait):
		}

		s, err := m.source.Sample()
		if err != nil {
			m.sensorFailures.Add(1)
			if errors.Is(err, sensor.ErrHardwareUnavailable) {
				m.logger.Warn("Sensor unavailable, backing off",
					zap.Duration("retry_in", backoff),
					zap.Error(err))
			} else {
				m.logger.Error("Sensor sample failed", zap.Error(err))
			}
			wait = backoff
			backoff *= 2
			if backoff > sensorBackoffMax {
				backoff = sensorBackoffMax
			}
			continue
		}

		backoff = sensorBackoffStart
		wait = interval
		m.sampleCount.Add(1)

		select {
		case m.samples <- s:
		case <-ctx.Done():
			return
		}
	}
}

// apply reacts to occupancy transitions: telemetry, LED, power intents.
func (m *Manager) apply(ctx context.Context, transitions []occupancy.Transition) {
	for _, tr := range transitions {
		m.sink.Transition(telemetry.NewTransitionEvent(
			tr.At,
			tr.From.String(),
			tr.To.String(),
			intentLabel(tr.Intent),
			m.machine.Deadline(),
		))

		fade := m.cfg.Indicator.FadeDuration.Std()
		switch tr.To {
		case occupancy.StateOccupied:
			m.fade(m.cfg.Indicator.OnBrightness, fade)
		case occupancy.StateVacating, occupancy.StateVacant:
			m.fade(0, fade)
		}

		switch tr.Intent {
		case occupancy.IntentEnsureOn:
			m.dispatcher.Submit(ctx, power.IntentEnsureOn)
		case occupancy.IntentEnsureOff:
			m.dispatcher.Submit(ctx, power.IntentEnsureOff)
		}
	}
}

func (m *Manager) runMaintenance(now time.Time) {
	until, err := m.maintenance.Perform(now)
	if err != nil {
		m.logger.Warn("Sensor maintenance failed", zap.Error(err))
		return
	}
	m.machine.SuppressUntil(until)

	// Re-assert the LED in case a fade was lost while the sensor was away.
	if m.machine.State() == occupancy.StateOccupied {
		m.fade(m.cfg.Indicator.OnBrightness, 0)
	} else {
		m.fade(0, 0)
	}
}

func (m *Manager) handleOutcome(out power.Outcome) {
	if !out.Success {
		m.logger.Error("Power sequence failed",
			zap.String("intent", out.Intent.String()),
			zap.Int("attempts", len(out.Attempts)),
			zap.String("final_state", out.FinalState.String()))
	}
	m.sink.Outcome(telemetry.NewOutcomeEvent(
		m.clk.Now(),
		out.Intent.String(),
		out.Success,
		len(out.Attempts),
		out.FinalState.String(),
	))
}

func (m *Manager) heartbeat(start time.Time, tvState tv.State) {
	now := m.clk.Now()
	m.sink.Heartbeat(telemetry.NewHeartbeatEvent(
		now,
		m.machine.State().String(),
		tvState.String(),
		m.sampleCount.Load(),
		m.sensorFailures.Load(),
		now.Sub(start),
	))
}

func (m *Manager) fade(brightness int, d time.Duration) {
	if err := m.indicator.FadeTo(brightness, d); err != nil {
		m.logger.Warn("Indicator fade failed", zap.Error(err))
	}
}

func (m *Manager) shutdown() {
	m.logger.Info("Shutting down control loop")
	m.dispatcher.Stop()
	m.fade(0, 0)
}

func intentLabel(i occupancy.Intent) string {
	if i == occupancy.IntentNone {
		return ""
	}
	return i.String()
}
