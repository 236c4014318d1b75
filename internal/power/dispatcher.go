package power

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs at most one power sequence at a time. Submitting a new
// intent preempts the running one; outcomes of preempted sequences are
// discarded so the event loop only ever sees the latest result.
type Dispatcher struct {
	engine   *Engine
	outcomes chan Outcome
	logger   *zap.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	generation uint64
	wg         sync.WaitGroup
}

// NewDispatcher wraps an engine with single-flight submission.
func NewDispatcher(engine *Engine, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		engine:   engine,
		outcomes: make(chan Outcome, 4),
		logger:   logger.Named("dispatch"),
	}
}

// Outcomes delivers results of non-preempted sequences.
func (d *Dispatcher) Outcomes() <-chan Outcome {
	return d.outcomes
}

// Submit starts executing intent, cancelling any sequence still in flight.
func (d *Dispatcher) Submit(ctx context.Context, intent Intent) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.logger.Debug("Preempting running power sequence",
			zap.String("next_intent", intent.String()))
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		outcome := d.engine.Execute(runCtx, intent)

		d.mu.Lock()
		current := gen == d.generation
		d.mu.Unlock()
		if !current {
			// A newer intent superseded this run; its result is stale.
			return
		}

		select {
		case d.outcomes <- outcome:
		default:
			d.logger.Warn("Outcome channel full, dropping result",
				zap.String("intent", outcome.Intent.String()))
		}
	}()
}

// Stop cancels any running sequence and waits for it to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}
