package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/haul/adapter"
	"github.com/pithecene-io/haul/iox"
)

func testEvent() *adapter.TransferCompletedEvent {
	return &adapter.TransferCompletedEvent{
		EventType:    adapter.EventTypeTransferCompleted,
		Version:      "0.3.0",
		TransferID:   "6f1c2a4e-0001",
		Status:       "mismatch",
		Message:      "sha256 mismatch",
		Framing:      "indexed",
		Transform:    "identity",
		PayloadBytes: 100,
		ResultBytes:  100,
		Fragments:    1,
		Timestamp:    "2026-03-01T12:00:00Z",
	}
}

func TestPublish_Success(t *testing.T) {
	var received adapter.TransferCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		if ev := r.Header.Get("X-Haul-Event"); ev != adapter.EventTypeTransferCompleted {
			t.Errorf("X-Haul-Event = %s", ev)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if received.TransferID != "6f1c2a4e-0001" {
		t.Errorf("TransferID = %s", received.TransferID)
	}
	if received.Status != "mismatch" || received.Message != "sha256 mismatch" {
		t.Errorf("Status/Message = %s/%s", received.Status, received.Message)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var auth atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer tok"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got, _ := auth.Load().(string); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", got)
	}
}

func TestPublish_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 3, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestPublish_5xxExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 2, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	err = a.Publish(t.Context(), testEvent())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("error = %v, want StatusError 500", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestPublish_4xxFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 3, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error for 400")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 5, Backoff: time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://x", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	a, err := New(Config{URL: "http://x"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}
