package app

import (
	"context"
	"fmt"

	"signalTrader/internal/domain"
	"signalTrader/internal/metrics"
	"signalTrader/internal/ports"
)

// SignalHandler processes a single signal.
type SignalHandler interface {
	Process(ctx context.Context, sig domain.Signal) Result
}

type job struct {
	sig  domain.Signal
	done chan Result
}

// Dispatcher serialises signal processing through a single worker fed by a bounded queue.
type Dispatcher struct {
	handler SignalHandler
	logger  ports.Logger
	metrics *metrics.Recorder
	queue   chan job
}

// NewDispatcher creates a dispatcher with room for queueSize pending signals.
func NewDispatcher(handler SignalHandler, logger ports.Logger, rec *metrics.Recorder, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		handler: handler,
		logger:  logger,
		metrics: rec,
		queue:   make(chan job, queueSize),
	}
}

// Submit enqueues sig and waits for its result. It returns ports.ErrQueueFull without
// waiting when the queue has no room. If ctx ends first the signal is still processed.
func (d *Dispatcher) Submit(ctx context.Context, sig domain.Signal) (Result, error) {
	j := job{sig: sig, done: make(chan Result, 1)}
	select {
	case d.queue <- j:
	default:
		d.logger.Warn(ctx, "Submit: Signal queue full, rejecting signal", map[string]interface{}{
			"signalID": sig.ID, "symbol": sig.Symbol,
		})
		return Result{}, ports.ErrQueueFull
	}

	select {
	case res := <-j.done:
		return res, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ports.ErrContextCanceled, ctx.Err())
	}
}

// Run drains the queue until ctx is cancelled. A signal already being processed
// runs to completion; signals still queued at shutdown fail with ErrContextCanceled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info(ctx, "Signal dispatcher started")
	work := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			d.drain()
			d.logger.Info(ctx, "Signal dispatcher stopped")
			return
		}
		select {
		case <-ctx.Done():
			continue
		case j := <-d.queue:
			res := d.handler.Process(work, j.sig)
			d.metrics.SignalProcessed(string(res.Outcome))
			if res.Err != nil {
				d.logger.Warn(work, "Run: Signal not executed", map[string]interface{}{
					"signalID": j.sig.ID, "symbol": j.sig.Symbol, "outcome": res.Outcome, "error": res.Err.Error(),
				})
			}
			j.done <- res
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			j.done <- Result{Outcome: OutcomeFailed, Err: ports.ErrContextCanceled}
		default:
			return
		}
	}
}
