package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InlineTransport executes tasks on the calling goroutine. It is the
// fallback when no worker pool is available and produces byte-identical
// results for the same executor and inputs.
type InlineTransport struct {
	executor Executor
	opts     Options

	mu         sync.Mutex
	progress   func(ProgressEvent)
	lastEmit   time.Time
	terminated bool
}

// NewInline constructs the inline strategy.
func NewInline(executor Executor, opts Options) *InlineTransport {
	opts.normalize()
	return &InlineTransport{executor: executor, opts: opts}
}

// Send executes the batch sequentially under the same round-trip ceiling
// the worker path enforces.
func (t *InlineTransport) Send(ctx context.Context, req ProcessRequest) (ProcessResponse, error) {
	resp := ProcessResponse{Results: make([]Result, 0, len(req.Tasks))}
	if len(req.Tasks) == 0 {
		return resp, nil
	}
	if t.isTerminated() {
		return resp, ErrTerminated
	}

	sendCtx, cancel := context.WithTimeout(ctx, t.opts.RoundTripTimeout)
	defer cancel()

	total := len(req.Tasks)
	for _, task := range req.Tasks {
		if err := sendCtx.Err(); err != nil {
			return resp, mapDeadline(ctx, err)
		}
		result := t.executor(sendCtx, task)
		if result.Err != nil && sendCtx.Err() != nil {
			// The ceiling expired mid-task; the task is unfinished, not
			// failed, so it stays out of the response for the caller to
			// resend.
			return resp, mapDeadline(ctx, sendCtx.Err())
		}
		resp.Results = append(resp.Results, result)
		t.emitProgress(len(resp.Results), total)
	}
	return resp, nil
}

// OnProgress registers the progress handler. Passing nil removes it.
func (t *InlineTransport) OnProgress(fn func(ProgressEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = fn
}

// Terminate is idempotent and safe without any prior Send.
func (t *InlineTransport) Terminate() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.terminated = true
	t.mu.Unlock()
}

func (t *InlineTransport) isTerminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

func (t *InlineTransport) emitProgress(current, total int) {
	t.mu.Lock()
	if t.terminated || t.progress == nil {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	if now.Sub(t.lastEmit) < t.opts.ProgressInterval {
		t.mu.Unlock()
		return
	}
	t.lastEmit = now
	fn := t.progress
	t.mu.Unlock()

	fn(ProgressEvent{Current: current, Total: total})
}

// mapDeadline distinguishes the transport's own ceiling from cancellation
// the caller initiated.
func mapDeadline(callerCtx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && callerCtx.Err() == nil {
		return ErrRoundTripTimeout
	}
	return callerCtx.Err()
}
