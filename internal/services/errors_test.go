package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"datamart/internal/fulfillment"
	"datamart/internal/ledger"
	"datamart/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "ledger", "update", "write failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ledger", "update", "write failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	failure := &fulfillment.WorkFailure{Phase: 1, Lane: 2, Err: errors.New("rejected")}
	if status := services.FailureStatus(failure); status != ledger.StatusFailed {
		t.Fatalf("expected failed for work failure, got %s", status)
	}
	if status := services.FailureStatus(fmt.Errorf("drive: %w", context.Canceled)); status != ledger.StatusCanceled {
		t.Fatalf("expected canceled, got %s", status)
	}
	if status := services.FailureStatus(nil); status != ledger.StatusCompleted {
		t.Fatalf("expected completed for nil error, got %s", status)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.Wrap(services.ErrValidation, "api", "open", "bad id", nil), http.StatusBadRequest},
		{fmt.Errorf("parse: %w", fulfillment.ErrUnknownKind), http.StatusBadRequest},
		{services.Wrap(services.ErrNotFound, "tracker", "get", "", nil), http.StatusNotFound},
		{services.Wrap(services.ErrConflict, "tracker", "retry", "", nil), http.StatusConflict},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
