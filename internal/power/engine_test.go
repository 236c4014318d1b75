package power

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/tv"
)

func fastConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		ToggleSettle:  time.Millisecond,
		WakeTimeout:   20 * time.Millisecond,
	}
}

func newTestEngine(ctrl tv.Controller, readOnly bool) *Engine {
	e := NewEngine(ctrl, clock.NewRealClock(), fastConfig(), readOnly, zap.NewNop())
	e.poll = time.Millisecond
	return e
}

func TestEnsureOnAlreadyOnIsNoop(t *testing.T) {
	fake := tv.NewFake(tv.StateOn)
	e := newTestEngine(fake, false)

	out := e.Execute(context.Background(), IntentEnsureOn)

	assert.True(t, out.Success)
	assert.Equal(t, tv.StateOn, out.FinalState)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, "noop", out.Attempts[0].Strategy)
	assert.Zero(t, fake.Toggles())
}

func TestEnsureOnFromStandbyToggles(t *testing.T) {
	fake := tv.NewFake(tv.StateStandby)
	e := newTestEngine(fake, false)

	out := e.Execute(context.Background(), IntentEnsureOn)

	assert.True(t, out.Success)
	assert.Equal(t, tv.StateOn, out.FinalState)
	assert.Equal(t, 1, fake.Toggles())
	require.NotEmpty(t, out.Attempts)
	assert.Equal(t, "toggle", out.Attempts[len(out.Attempts)-1].Strategy)
}

func TestEnsureOnWakesUnreachableTV(t *testing.T) {
	fake := tv.NewFake(tv.StateUnreachable)
	e := newTestEngine(fake, false)

	out := e.Execute(context.Background(), IntentEnsureOn)

	assert.True(t, out.Success)
	assert.Equal(t, tv.StateOn, out.FinalState)
	assert.Equal(t, 1, fake.Wakes())
	assert.Equal(t, 1, fake.Toggles())

	// The wake must come before any toggle.
	strategies := make([]string, 0, len(out.Attempts))
	for _, a := range out.Attempts {
		strategies = append(strategies, a.Strategy)
	}
	require.NotEmpty(t, strategies)
	assert.Equal(t, "wake", strategies[0])
	assert.Equal(t, "toggle", strategies[len(strategies)-1])
}

func TestEnsureOnGivesUpWhenWakeFails(t *testing.T) {
	fake := tv.NewFake(tv.StateUnreachable)
	fake.SetWakeWorks(false)
	e := newTestEngine(fake, false)

	out := e.Execute(context.Background(), IntentEnsureOn)

	assert.False(t, out.Success)
	assert.Equal(t, tv.StateUnreachable, out.FinalState)
	assert.Equal(t, fastConfig().RetryAttempts, fake.Wakes())
	assert.Zero(t, fake.Toggles())
}

func TestEnsureOffFromOnToggles(t *testing.T) {
	fake := tv.NewFake(tv.StateOn)
	e := newTestEngine(fake, false)

	out := e.Execute(context.Background(), IntentEnsureOff)

	assert.True(t, out.Success)
	assert.Equal(t, tv.StateStandby, out.FinalState)
	assert.Equal(t, 1, fake.Toggles())
}

func TestEnsureOffUnreachableIsSatisfied(t *testing.T) {
	fake := tv.NewFake(tv.StateUnreachable)
	e := newTestEngine(fake, false)

	out := e.Execute(context.Background(), IntentEnsureOff)

	assert.True(t, out.Success)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, "noop", out.Attempts[0].Strategy)
	assert.Zero(t, fake.Toggles())
	assert.Zero(t, fake.Wakes())
}

func TestToggleRetriesExhaust(t *testing.T) {
	fake := tv.NewFake(tv.StateStandby)
	fake.SetToggleError(errors.New("session refused"))
	e := newTestEngine(fake, false)

	out := e.Execute(context.Background(), IntentEnsureOn)

	assert.False(t, out.Success)
	assert.Equal(t, tv.StateStandby, out.FinalState)
	assert.Len(t, out.Attempts, fastConfig().RetryAttempts)
	for _, a := range out.Attempts {
		assert.Equal(t, "toggle", a.Strategy)
		assert.False(t, a.Succeeded)
	}
}

func TestReadOnlyNeverTouchesDevice(t *testing.T) {
	fake := tv.NewFake(tv.StateStandby)
	e := newTestEngine(fake, true)

	out := e.Execute(context.Background(), IntentEnsureOn)

	assert.True(t, out.Success)
	assert.Equal(t, tv.StateStandby, out.FinalState)
	assert.Zero(t, fake.Toggles())
	assert.Zero(t, fake.Wakes())
}

func TestCancelledContextAbortsSequence(t *testing.T) {
	fake := tv.NewFake(tv.StateUnreachable)
	fake.SetWakeWorks(false)
	e := newTestEngine(fake, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.Execute(ctx, IntentEnsureOn)
	assert.False(t, out.Success)
}

func TestDispatcherDeliversOutcome(t *testing.T) {
	fake := tv.NewFake(tv.StateStandby)
	d := NewDispatcher(newTestEngine(fake, false), zap.NewNop())
	defer d.Stop()

	d.Submit(context.Background(), IntentEnsureOn)

	select {
	case out := <-d.Outcomes():
		assert.True(t, out.Success)
		assert.Equal(t, IntentEnsureOn, out.Intent)
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
	}
}

func TestPreemptionStopsOffToggles(t *testing.T) {
	fake := tv.NewFake(tv.StateOn)
	fake.SetToggleError(errors.New("session refused"))

	// Long retry delays keep the ensure-off sequence mid-retry.
	e := NewEngine(fake, clock.NewRealClock(), Config{
		RetryAttempts: 10,
		RetryDelay:    time.Second,
		ToggleSettle:  time.Millisecond,
		WakeTimeout:   time.Millisecond,
	}, false, zap.NewNop())
	e.poll = time.Millisecond

	d := NewDispatcher(e, zap.NewNop())
	defer d.Stop()

	d.Submit(context.Background(), IntentEnsureOff)
	time.Sleep(20 * time.Millisecond)

	// Re-occupancy preempts the off sequence. The TV is already on, so
	// the new sequence issues no toggles either.
	d.Submit(context.Background(), IntentEnsureOn)

	select {
	case out := <-d.Outcomes():
		assert.Equal(t, IntentEnsureOn, out.Intent)
		assert.True(t, out.Success)
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
	}

	// The cancelled off sequence must go completely quiet: no toggles and
	// no further state queries after its outcome was superseded.
	assert.Zero(t, fake.Toggles())
	before := len(fake.QueryLog())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, len(fake.QueryLog()))
}

func TestDispatcherPreemptsAndDiscardsStaleOutcome(t *testing.T) {
	fake := tv.NewFake(tv.StateUnreachable)
	fake.SetWakeWorks(false)

	// Stretch the wake phase so the first sequence is still running when
	// the second one lands.
	e := NewEngine(fake, clock.NewRealClock(), Config{
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		ToggleSettle:  time.Millisecond,
		WakeTimeout:   10 * time.Second,
	}, false, zap.NewNop())
	e.poll = 10 * time.Millisecond

	d := NewDispatcher(e, zap.NewNop())
	defer d.Stop()

	d.Submit(context.Background(), IntentEnsureOn)
	time.Sleep(20 * time.Millisecond)
	d.Submit(context.Background(), IntentEnsureOff)

	select {
	case out := <-d.Outcomes():
		// Only the EnsureOff result may surface; the preempted EnsureOn
		// must have been discarded.
		assert.Equal(t, IntentEnsureOff, out.Intent)
		assert.True(t, out.Success)
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
	}

	select {
	case out := <-d.Outcomes():
		t.Fatalf("unexpected second outcome: %+v", out)
	case <-time.After(50 * time.Millisecond):
	}
}
