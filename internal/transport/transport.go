package transport

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"intake/internal/logging"
)

var (
	// ErrUnavailable means no background execution context could be
	// started; callers fall back to the inline strategy.
	ErrUnavailable = errors.New("worker transport unavailable")
	// ErrRoundTripTimeout means a Send did not complete within the
	// configured ceiling. The batch may be retried.
	ErrRoundTripTimeout = errors.New("worker round trip timed out")
	// ErrTerminated means the transport was shut down while a Send was
	// in flight.
	ErrTerminated = errors.New("worker transport terminated")
)

// Task is one unit of background work. The transport never inspects the
// payload; it only moves tasks to an executor and results back.
type Task struct {
	ID      string
	Payload any
}

// Result is the outcome for one task. Exactly one of Value or Err is set.
type Result struct {
	ID    string
	Value string
	Err   error
}

// ProcessRequest asks the transport to execute a batch of tasks.
type ProcessRequest struct {
	Tasks []Task
}

// ProcessResponse carries one result per dispatched task. On timeout the
// response holds whatever completed before the deadline.
type ProcessResponse struct {
	Results []Result
}

// ProgressEvent is an out-of-band completion notification. The sender
// rate-limits these to at most one per configured interval no matter how
// fast tasks finish.
type ProgressEvent struct {
	Current int
	Total   int
}

// Executor performs one task on the transport's execution context.
type Executor func(ctx context.Context, task Task) Result

// Options configures transport construction.
type Options struct {
	// Workers sets the pool size: 0 selects one worker per CPU, negative
	// disables the pool entirely.
	Workers          int
	RoundTripTimeout time.Duration
	ProgressInterval time.Duration
}

const (
	defaultRoundTripTimeout = 30 * time.Second
	defaultProgressInterval = time.Second
)

func (o *Options) normalize() {
	if o.RoundTripTimeout <= 0 {
		o.RoundTripTimeout = defaultRoundTripTimeout
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = defaultProgressInterval
	}
}

// Transport is the channel between the orchestrating goroutine and the
// execution context that runs tasks. Every Send resolves exactly once or
// times out; Terminate is idempotent and silences all progress handlers.
type Transport interface {
	Send(ctx context.Context, req ProcessRequest) (ProcessResponse, error)
	OnProgress(fn func(ProgressEvent))
	Terminate()
}

// Select performs the capability check once and returns a worker-backed
// transport, or the inline strategy when the pool cannot start. Both
// satisfy the same contract, so callers never branch on which one they got.
func Select(executor Executor, opts Options, logger *slog.Logger) Transport {
	log := logging.NewComponentLogger(logger, "transport")

	worker, err := NewWorker(executor, opts)
	if err != nil {
		log.Info("worker pool unavailable, executing inline",
			logging.Error(err),
		)
		return NewInline(executor, opts)
	}
	log.Debug("worker pool started", logging.Int("workers", worker.workers))
	return worker
}

func resolveWorkers(configured int) (int, error) {
	if configured < 0 {
		return 0, ErrUnavailable
	}
	if configured == 0 {
		return runtime.NumCPU(), nil
	}
	return configured, nil
}
