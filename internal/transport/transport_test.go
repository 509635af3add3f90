package transport_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"intake/internal/logging"
	"intake/internal/transport"
)

func echoExecutor(_ context.Context, task transport.Task) transport.Result {
	payload, _ := task.Payload.(string)
	return transport.Result{ID: task.ID, Value: strings.ToUpper(payload)}
}

func makeRequest(n int) transport.ProcessRequest {
	req := transport.ProcessRequest{}
	for i := 0; i < n; i++ {
		req.Tasks = append(req.Tasks, transport.Task{
			ID:      fmt.Sprintf("task-%d", i),
			Payload: fmt.Sprintf("payload-%d", i),
		})
	}
	return req
}

func TestWorkerAndInlineProduceIdenticalResults(t *testing.T) {
	req := makeRequest(10)

	worker, err := transport.NewWorker(echoExecutor, transport.Options{Workers: 4})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer worker.Terminate()
	inline := transport.NewInline(echoExecutor, transport.Options{})

	workerResp, err := worker.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("worker send: %v", err)
	}
	inlineResp, err := inline.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("inline send: %v", err)
	}

	collect := func(resp transport.ProcessResponse) []string {
		out := make([]string, 0, len(resp.Results))
		for _, r := range resp.Results {
			out = append(out, r.ID+"="+r.Value)
		}
		sort.Strings(out)
		return out
	}
	w, i := collect(workerResp), collect(inlineResp)
	if len(w) != 10 || len(i) != 10 {
		t.Fatalf("expected 10 results each, got %d and %d", len(w), len(i))
	}
	for idx := range w {
		if w[idx] != i[idx] {
			t.Fatalf("strategies diverge at %d: %q vs %q", idx, w[idx], i[idx])
		}
	}
}

func TestWorkerSendTimesOut(t *testing.T) {
	stuck := func(ctx context.Context, task transport.Task) transport.Result {
		<-ctx.Done()
		return transport.Result{ID: task.ID, Err: ctx.Err()}
	}
	worker, err := transport.NewWorker(stuck, transport.Options{
		Workers:          1,
		RoundTripTimeout: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer worker.Terminate()

	_, err = worker.Send(context.Background(), makeRequest(1))
	if !errors.Is(err, transport.ErrRoundTripTimeout) {
		t.Fatalf("expected round trip timeout, got %v", err)
	}
}

func TestInlineSendTimesOut(t *testing.T) {
	slow := func(ctx context.Context, task transport.Task) transport.Result {
		select {
		case <-ctx.Done():
			return transport.Result{ID: task.ID, Err: ctx.Err()}
		case <-time.After(50 * time.Millisecond):
			return transport.Result{ID: task.ID, Value: "done"}
		}
	}
	inline := transport.NewInline(slow, transport.Options{RoundTripTimeout: 20 * time.Millisecond})

	resp, err := inline.Send(context.Background(), makeRequest(3))
	if !errors.Is(err, transport.ErrRoundTripTimeout) {
		t.Fatalf("expected round trip timeout, got %v", err)
	}
	if len(resp.Results) >= 3 {
		t.Fatalf("expected partial response, got %d results", len(resp.Results))
	}
}

func TestInlineTimeoutLeavesCutTaskUnreported(t *testing.T) {
	executor := func(ctx context.Context, task transport.Task) transport.Result {
		if task.ID == "task-0" {
			return transport.Result{ID: task.ID, Value: "done"}
		}
		<-ctx.Done()
		return transport.Result{ID: task.ID, Err: ctx.Err()}
	}
	inline := transport.NewInline(executor, transport.Options{RoundTripTimeout: 20 * time.Millisecond})

	resp, err := inline.Send(context.Background(), makeRequest(3))
	if !errors.Is(err, transport.ErrRoundTripTimeout) {
		t.Fatalf("expected round trip timeout, got %v", err)
	}
	for _, r := range resp.Results {
		if r.Err != nil {
			t.Fatalf("task %s reported as failed; a deadline-cut task must be omitted for resend", r.ID)
		}
		if r.ID == "task-1" {
			t.Fatalf("cut task must not appear in the response: %+v", r)
		}
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected only the finished task, got %d results", len(resp.Results))
	}
}

func TestTerminateIsIdempotentAndSilencesProgress(t *testing.T) {
	worker, err := transport.NewWorker(echoExecutor, transport.Options{Workers: 2})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	var mu sync.Mutex
	fired := 0
	worker.OnProgress(func(transport.ProgressEvent) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	worker.Terminate()
	worker.Terminate()

	if _, err := worker.Send(context.Background(), makeRequest(2)); !errors.Is(err, transport.ErrTerminated) {
		t.Fatalf("expected terminated error, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Fatalf("progress fired %d times after terminate", fired)
	}
}

func TestTerminateWithoutStartIsSafe(t *testing.T) {
	var worker *transport.WorkerTransport
	worker.Terminate()

	inline := transport.NewInline(echoExecutor, transport.Options{})
	inline.Terminate()
	inline.Terminate()
}

func TestProgressEventsAreRateLimited(t *testing.T) {
	inline := transport.NewInline(echoExecutor, transport.Options{ProgressInterval: time.Hour})

	var mu sync.Mutex
	events := 0
	inline.OnProgress(func(transport.ProgressEvent) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	if _, err := inline.Send(context.Background(), makeRequest(50)); err != nil {
		t.Fatalf("send: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if events > 1 {
		t.Fatalf("expected at most one event per interval, got %d", events)
	}
}

func TestSelectFallsBackToInline(t *testing.T) {
	tr := transport.Select(echoExecutor, transport.Options{Workers: -1}, logging.NewNop())
	if _, ok := tr.(*transport.InlineTransport); !ok {
		t.Fatalf("expected inline fallback, got %T", tr)
	}

	resp, err := tr.Send(context.Background(), makeRequest(2))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
}

func TestSendEmptyRequest(t *testing.T) {
	worker, err := transport.NewWorker(echoExecutor, transport.Options{Workers: 1})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer worker.Terminate()

	resp, err := worker.Send(context.Background(), transport.ProcessRequest{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected empty response, got %d", len(resp.Results))
	}
}
