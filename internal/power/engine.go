// Package power turns desired TV states into sequences of toggle presses and
// wake attempts. The remote protocol has no discrete on/off commands, so
// every action is query-then-toggle with verification.
package power

import (
	"context"
	"time"

	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/tv"
)

// Intent is the desired end state of the television.
type Intent int

const (
	// IntentEnsureOn drives the TV to the on state.
	IntentEnsureOn Intent = iota
	// IntentEnsureOff drives the TV to standby. Unreachable also counts
	// as satisfied: a TV that is off the network is not showing a picture.
	IntentEnsureOff
)

func (i Intent) String() string {
	if i == IntentEnsureOff {
		return "ensure_off"
	}
	return "ensure_on"
}

// Attempt records one strategy step of an execution.
type Attempt struct {
	Strategy  string
	Succeeded bool
	Elapsed   time.Duration
}

// Outcome is the result of executing one intent.
type Outcome struct {
	Intent     Intent
	Success    bool
	Attempts   []Attempt
	FinalState tv.State
}

// Config bounds the retry behavior of the engine.
type Config struct {
	// RetryAttempts is how many times each strategy is retried.
	RetryAttempts int
	// RetryDelay is the pause between retries of the same strategy.
	RetryDelay time.Duration
	// ToggleSettle is how long the TV gets to change state after a
	// toggle press before the state is re-queried.
	ToggleSettle time.Duration
	// WakeTimeout is how long to wait for the network stack to come up
	// after each wake packet.
	WakeTimeout time.Duration
}

// Engine executes power intents against a controller. Execute blocks; run it
// off the event loop and cancel its context to preempt.
type Engine struct {
	ctrl     tv.Controller
	clk      clock.Clock
	cfg      Config
	readOnly bool
	poll     time.Duration
	logger   *zap.Logger
}

// NewEngine creates an engine. In readOnly mode state is still queried but
// no toggle or wake ever reaches the device.
func NewEngine(ctrl tv.Controller, clk clock.Clock, cfg Config, readOnly bool, logger *zap.Logger) *Engine {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return &Engine{
		ctrl:     ctrl,
		clk:      clk,
		cfg:      cfg,
		readOnly: readOnly,
		poll:     time.Second,
		logger:   logger.Named("power"),
	}
}

// Execute drives the TV to the intent's end state. It returns early with
// Success=false when ctx is cancelled.
func (e *Engine) Execute(ctx context.Context, intent Intent) Outcome {
	start := e.clk.Now()
	out := Outcome{Intent: intent}

	state := e.ctrl.QueryState(ctx)
	e.logger.Info("Executing power intent",
		zap.String("intent", intent.String()),
		zap.String("tv_state", state.String()))

	if satisfied(intent, state) {
		out.Success = true
		out.FinalState = state
		out.Attempts = append(out.Attempts, Attempt{Strategy: "noop", Succeeded: true})
		return out
	}

	if e.readOnly {
		e.logger.Info("READ-ONLY: Would drive TV power",
			zap.String("intent", intent.String()),
			zap.String("tv_state", state.String()))
		out.Success = true
		out.FinalState = state
		return out
	}

	if intent == IntentEnsureOn && state == tv.StateUnreachable {
		var ok bool
		state, ok = e.wakeLoop(ctx, &out)
		if !ok {
			out.FinalState = state
			e.logFinish(out, start)
			return out
		}
		if satisfied(intent, state) {
			out.Success = true
			out.FinalState = state
			e.logFinish(out, start)
			return out
		}
	}

	state, out.Success = e.toggleLoop(ctx, intent, &out)
	out.FinalState = state
	e.logFinish(out, start)
	return out
}

// wakeLoop broadcasts wake packets until the TV answers on the network or
// attempts run out. Returns the last observed state and whether the TV
// became reachable.
func (e *Engine) wakeLoop(ctx context.Context, out *Outcome) (tv.State, bool) {
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		began := e.clk.Now()
		if err := e.ctrl.Wake(ctx); err != nil {
			e.logger.Warn("Wake attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			out.Attempts = append(out.Attempts, Attempt{
				Strategy: "wake",
				Elapsed:  e.clk.Since(began),
			})
			if !e.pause(ctx, e.cfg.RetryDelay) {
				return tv.StateUnreachable, false
			}
			continue
		}

		state, reachable := e.awaitReachable(ctx)
		out.Attempts = append(out.Attempts, Attempt{
			Strategy:  "wake",
			Succeeded: reachable,
			Elapsed:   e.clk.Since(began),
		})
		if reachable {
			e.logger.Info("TV answered after wake",
				zap.Int("attempt", attempt),
				zap.String("tv_state", state.String()))
			return state, true
		}

		e.logger.Warn("TV still unreachable after wake",
			zap.Int("attempt", attempt),
			zap.Duration("waited", e.cfg.WakeTimeout))
		if !e.pause(ctx, e.cfg.RetryDelay) {
			return tv.StateUnreachable, false
		}
	}
	return tv.StateUnreachable, false
}

// awaitReachable polls the TV until it answers or the wake timeout elapses.
func (e *Engine) awaitReachable(ctx context.Context) (tv.State, bool) {
	deadline := e.clk.Now().Add(e.cfg.WakeTimeout)
	for {
		if state := e.ctrl.QueryState(ctx); state != tv.StateUnreachable {
			return state, true
		}
		if !e.clk.Now().Before(deadline) {
			return tv.StateUnreachable, false
		}
		if !e.pause(ctx, e.poll) {
			return tv.StateUnreachable, false
		}
	}
}

// toggleLoop presses the power key and verifies the state change, retrying
// until the intent is satisfied or attempts run out.
func (e *Engine) toggleLoop(ctx context.Context, intent Intent, out *Outcome) (tv.State, bool) {
	state := e.ctrl.QueryState(ctx)
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		if satisfied(intent, state) {
			return state, true
		}

		began := e.clk.Now()
		err := e.ctrl.TogglePower(ctx)
		if err != nil {
			e.logger.Warn("Toggle attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if !e.pause(ctx, e.cfg.ToggleSettle) {
			return state, false
		}

		state = e.ctrl.QueryState(ctx)
		succeeded := err == nil && satisfied(intent, state)
		out.Attempts = append(out.Attempts, Attempt{
			Strategy:  "toggle",
			Succeeded: succeeded,
			Elapsed:   e.clk.Since(began),
		})
		if succeeded {
			return state, true
		}

		if attempt < e.cfg.RetryAttempts && !e.pause(ctx, e.cfg.RetryDelay) {
			return state, false
		}
	}
	return state, satisfied(intent, state)
}

// pause waits d, returning false when ctx is cancelled first.
func (e *Engine) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-e.clk.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) logFinish(out Outcome, start time.Time) {
	e.logger.Info("Power intent finished",
		zap.String("intent", out.Intent.String()),
		zap.Bool("success", out.Success),
		zap.Int("attempts", len(out.Attempts)),
		zap.String("final_state", out.FinalState.String()),
		zap.Duration("elapsed", e.clk.Since(start)))
}

// satisfied reports whether state already fulfils intent.
func satisfied(intent Intent, state tv.State) bool {
	if intent == IntentEnsureOn {
		return state == tv.StateOn
	}
	return state == tv.StateStandby || state == tv.StateUnreachable
}
