package services_test

import (
	"errors"
	"testing"

	"intake/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "history", "lookup", "chunk 2", base)

	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected transient marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped base error")
	}
	want := "transient failure: history: lookup: chunk 2: connection reset"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "transport", "send", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected transient marker for nil marker")
	}
}

func TestRetryablePredicates(t *testing.T) {
	timeout := services.Wrap(services.ErrTimeout, "transport", "send", "round trip", nil)
	if !services.IsTimeout(timeout) {
		t.Fatal("expected timeout")
	}
	if !services.IsRetryable(timeout) {
		t.Fatal("timeouts are retryable")
	}

	unavailable := services.Wrap(services.ErrUnavailable, "transport", "start", "no workers", nil)
	if !services.IsUnavailable(unavailable) {
		t.Fatal("expected unavailable")
	}
	if services.IsRetryable(unavailable) {
		t.Fatal("unavailable is not retryable")
	}
}
