package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// WorkerTransport runs tasks on a fixed pool of background goroutines, with
// all coordination done by message passing. It owns no shared state with
// its callers beyond the channels.
type WorkerTransport struct {
	executor Executor
	opts     Options
	workers  int

	tasks chan workItem
	quit  chan struct{}

	termOnce sync.Once

	mu         sync.Mutex
	progress   func(ProgressEvent)
	lastEmit   time.Time
	terminated bool
}

type workItem struct {
	ctx  context.Context
	task Task
	out  chan<- Result
}

// NewWorker starts the pool. Returns ErrUnavailable when the pool is
// disabled so the caller can pick the inline strategy instead.
func NewWorker(executor Executor, opts Options) (*WorkerTransport, error) {
	if executor == nil {
		return nil, errors.New("transport: executor is required")
	}
	workers, err := resolveWorkers(opts.Workers)
	if err != nil {
		return nil, err
	}
	opts.normalize()

	t := &WorkerTransport{
		executor: executor,
		opts:     opts,
		workers:  workers,
		tasks:    make(chan workItem),
		quit:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go t.run()
	}
	return t, nil
}

func (t *WorkerTransport) run() {
	for {
		select {
		case <-t.quit:
			return
		case item := <-t.tasks:
			result := t.executor(item.ctx, item.task)
			select {
			case item.out <- result:
			case <-item.ctx.Done():
			case <-t.quit:
			}
		}
	}
}

// Send dispatches the batch and blocks until every task has a result, the
// round-trip ceiling elapses, ctx is cancelled, or the transport is
// terminated. On timeout the partial response is returned alongside
// ErrRoundTripTimeout so the caller can retry the batch.
func (t *WorkerTransport) Send(ctx context.Context, req ProcessRequest) (ProcessResponse, error) {
	resp := ProcessResponse{Results: make([]Result, 0, len(req.Tasks))}
	if len(req.Tasks) == 0 {
		return resp, nil
	}

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(t.opts.RoundTripTimeout)
	defer timer.Stop()

	out := make(chan Result, len(req.Tasks))
	for _, task := range req.Tasks {
		select {
		case t.tasks <- workItem{ctx: sendCtx, task: task, out: out}:
		case <-timer.C:
			return resp, ErrRoundTripTimeout
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-t.quit:
			return resp, ErrTerminated
		}
	}

	total := len(req.Tasks)
	for len(resp.Results) < total {
		select {
		case result := <-out:
			resp.Results = append(resp.Results, result)
			t.emitProgress(len(resp.Results), total)
		case <-timer.C:
			return resp, ErrRoundTripTimeout
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-t.quit:
			return resp, ErrTerminated
		}
	}
	return resp, nil
}

// OnProgress registers the progress handler. Passing nil removes it.
func (t *WorkerTransport) OnProgress(fn func(ProgressEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = fn
}

// Terminate shuts the pool down. Idempotent; registered handlers never
// fire again afterwards.
func (t *WorkerTransport) Terminate() {
	if t == nil {
		return
	}
	t.termOnce.Do(func() {
		t.mu.Lock()
		t.terminated = true
		t.mu.Unlock()
		close(t.quit)
	})
}

func (t *WorkerTransport) emitProgress(current, total int) {
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
