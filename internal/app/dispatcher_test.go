package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

type blockingHandler struct {
	mu      sync.Mutex
	release chan struct{}
	started chan string
	seen    []string
	ctxErr  []error
}

func newBlockingHandler() *blockingHandler {
	return &blockingHandler{release: make(chan struct{}), started: make(chan string, 16)}
}

func (h *blockingHandler) Process(ctx context.Context, sig domain.Signal) Result {
	h.started <- sig.Symbol
	<-h.release
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, sig.Symbol)
	h.ctxErr = append(h.ctxErr, ctx.Err())
	return Result{Outcome: OutcomeOpened}
}

func TestDispatcher_ProcessesInOrder(t *testing.T) {
	h := newBlockingHandler()
	close(h.release)
	d := NewDispatcher(h, &mockLogger{}, nil, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	for _, s := range []string{"AUSDT", "BUSDT", "CUSDT"} {
		res, err := d.Submit(context.Background(), domain.Signal{Symbol: s})
		require.NoError(t, err)
		assert.Equal(t, OutcomeOpened, res.Outcome)
	}
	assert.Equal(t, []string{"AUSDT", "BUSDT", "CUSDT"}, h.seen)
}

func TestDispatcher_QueueFull(t *testing.T) {
	h := newBlockingHandler()
	d := NewDispatcher(h, &mockLogger{}, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	results := make(chan error, 2)
	submit := func(sym string) {
		_, err := d.Submit(context.Background(), domain.Signal{Symbol: sym})
		results <- err
	}

	go submit("AUSDT")
	<-h.started // worker busy with AUSDT
	go submit("BUSDT")
	require.Eventually(t, func() bool { return len(d.queue) == 1 }, time.Second, 5*time.Millisecond)

	_, err := d.Submit(context.Background(), domain.Signal{Symbol: "CUSDT"})
	assert.ErrorIs(t, err, ports.ErrQueueFull)

	close(h.release)
	assert.NoError(t, <-results)
	assert.NoError(t, <-results)
}

func TestDispatcher_CallerCancellationDoesNotAbortProcessing(t *testing.T) {
	h := newBlockingHandler()
	d := NewDispatcher(h, &mockLogger{}, nil, 2)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go d.Run(runCtx)

	callerCtx, cancelCaller := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Submit(callerCtx, domain.Signal{Symbol: "AUSDT"})
		errCh <- err
	}()
	<-h.started
	cancelCaller()
	assert.ErrorIs(t, <-errCh, ports.ErrContextCanceled)

	close(h.release)
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.seen) == 1
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, h.ctxErr[0])
}

func TestDispatcher_ShutdownFailsQueuedSignals(t *testing.T) {
	h := newBlockingHandler()
	d := NewDispatcher(h, &mockLogger{}, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	first := make(chan Result, 1)
	go func() {
		res, _ := d.Submit(context.Background(), domain.Signal{Symbol: "AUSDT"})
		first <- res
	}()
	<-h.started

	second := make(chan Result, 1)
	go func() {
		res, _ := d.Submit(context.Background(), domain.Signal{Symbol: "BUSDT"})
		second <- res
	}()
	require.Eventually(t, func() bool { return len(d.queue) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	close(h.release)
	<-done

	assert.Equal(t, OutcomeOpened, (<-first).Outcome, "in-flight signal completes")
	res := <-second
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ports.ErrContextCanceled)
}
