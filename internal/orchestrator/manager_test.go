package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/config"
	"presencetv/internal/indicator"
	"presencetv/internal/maintenance"
	"presencetv/internal/power"
	"presencetv/internal/sensor"
	"presencetv/internal/telemetry"
	"presencetv/internal/tv"
)

// harness wires the manager to fakes with timings fast enough for tests.
type harness struct {
	source *sensor.Fake
	tv     *tv.Fake
	led    *indicator.Fake
	sink   *telemetry.FakeSink
	mgr    *Manager
	cancel context.CancelFunc
	done   chan struct{}
}

func newHarness(t *testing.T, tvState tv.State, maintInterval, quiet time.Duration) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Sensor.SampleInterval = config.Duration(10 * time.Millisecond)
	cfg.Sensor.Debounce = config.Duration(20 * time.Millisecond)
	cfg.Control.OffDelay = config.Duration(40 * time.Millisecond)
	cfg.Control.RetryDelay = config.Duration(5 * time.Millisecond)
	cfg.TV.ToggleSettle = config.Duration(time.Millisecond)
	cfg.TV.WakeTimeout = config.Duration(20 * time.Millisecond)
	cfg.Indicator.FadeDuration = config.Duration(time.Millisecond)
	cfg.Maintenance.Interval = config.Duration(maintInterval)
	cfg.Maintenance.QuietPeriod = config.Duration(quiet)

	clk := clock.NewRealClock()
	source := sensor.NewFake(clk.Now)
	tvf := tv.NewFake(tvState)
	led := indicator.NewFake()
	sink := telemetry.NewFakeSink()

	engine := power.NewEngine(tvf, clk, power.Config{
		RetryAttempts: cfg.Control.RetryAttempts,
		RetryDelay:    cfg.Control.RetryDelay.Std(),
		ToggleSettle:  cfg.TV.ToggleSettle.Std(),
		WakeTimeout:   cfg.TV.WakeTimeout.Std(),
	}, false, zap.NewNop())

	h := &harness{
		source: source,
		tv:     tvf,
		led:    led,
		sink:   sink,
		done:   make(chan struct{}),
	}
	h.mgr = NewManager(Deps{
		Config:      cfg,
		Clock:       clk,
		Source:      source,
		TV:          tvf,
		Dispatcher:  power.NewDispatcher(engine, zap.NewNop()),
		Indicator:   led,
		Maintenance: maintenance.NewScheduler(source, maintInterval, quiet, clk, zap.NewNop()),
		Sink:        sink,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		h.mgr.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("manager did not shut down")
		}
	})
	return h
}

func (h *harness) tvState() tv.State {
	return h.tv.QueryState(context.Background())
}

func TestOccupancyCycleDrivesTV(t *testing.T) {
	h := newHarness(t, tv.StateStandby, time.Hour, time.Millisecond)

	// Person walks in: debounced presence turns the TV on.
	h.source.SetPresent(true)
	require.Eventually(t, func() bool {
		return h.tvState() == tv.StateOn
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.tv.Toggles())

	// The indicator faded in.
	require.Eventually(t, func() bool {
		for _, f := range h.led.Fades() {
			if f.Brightness == 100 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// Person leaves: after the debounce and the off delay the TV goes back
	// to standby.
	h.source.SetPresent(false)
	require.Eventually(t, func() bool {
		return h.tvState() == tv.StateStandby
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, h.tv.Toggles())

	// Full transition trail was published.
	require.Eventually(t, func() bool {
		return len(h.sink.Transitions()) >= 3
	}, time.Second, 5*time.Millisecond)

	trs := h.sink.Transitions()
	assert.Equal(t, "vacant", trs[0].From)
	assert.Equal(t, "occupied", trs[0].To)
	assert.Equal(t, "ensure_on", trs[0].Intent)
	assert.Equal(t, "vacating", trs[1].To)
	assert.Empty(t, trs[1].Intent)
	assert.Equal(t, "vacant", trs[2].To)
	assert.Equal(t, "ensure_off", trs[2].Intent)
}

func TestStartupSyncTurnsLeftoverTVOff(t *testing.T) {
	h := newHarness(t, tv.StateOn, time.Hour, time.Millisecond)

	// Nobody present, TV found on: the normal delayed-off path applies.
	require.Eventually(t, func() bool {
		return h.tvState() == tv.StateStandby
	}, 2*time.Second, 5*time.Millisecond)

	trs := h.sink.Transitions()
	require.NotEmpty(t, trs)
	assert.Equal(t, "vacant", trs[0].From)
	assert.Equal(t, "vacating", trs[0].To)
}

func TestMaintenanceQuietPeriodMasksSensorReset(t *testing.T) {
	h := newHarness(t, tv.StateStandby, 15*time.Millisecond, 10*time.Second)

	h.source.SetPresent(true)
	require.Eventually(t, func() bool {
		return h.tvState() == tv.StateOn
	}, 2*time.Second, 5*time.Millisecond)

	// Maintenance runs and keeps refreshing a long quiet period, so the
	// absence it would otherwise cause never reaches the state machine.
	require.Eventually(t, func() bool {
		return h.source.ResetCalls() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	h.source.SetPresent(false)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, tv.StateOn, h.tvState())

	require.NotEmpty(t, h.sink.Heartbeats())
}

func TestSensorFailureBacksOffAndRecovers(t *testing.T) {
	h := newHarness(t, tv.StateStandby, time.Hour, time.Millisecond)

	h.source.SetSampleError(sensor.ErrHardwareUnavailable)
	time.Sleep(50 * time.Millisecond)

	// Recovery: presence flows again and the TV turns on.
	h.source.SetSampleError(nil)
	h.source.SetPresent(true)
	require.Eventually(t, func() bool {
		return h.tvState() == tv.StateOn
	}, 3*time.Second, 5*time.Millisecond)
}
