package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chronocam/chronocam/pkg/events"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any)            {}
func (testLogger) Info(msg string, args ...any)             {}
func (testLogger) Error(msg string, err error, args ...any) {}

func waitForSubscriber(t *testing.T, bus *events.Bus) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("SSE handler never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSSEStreamsPublishedEvents(t *testing.T) {
	bus := events.NewBus(8, testLogger{})
	handler := NewEventsHandler(bus, testLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(done)
	}()

	waitForSubscriber(t, bus)
	bus.Publish(events.NewSnapshot("snapshot_20250602_120000.jpg", "12:00:00", "02.06.25 12:00"))

	// Give the handler a moment to drain, then disconnect. The body
	// is only inspected after the handler has returned.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit on client disconnect")
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, ": connected ") {
		t.Fatalf("missing connection comment: %q", body)
	}
	if !strings.Contains(body, `data: {"type":"snapshot"`) {
		t.Fatalf("missing SSE data frame: %q", body)
	}
	if !strings.Contains(body, "snapshot_20250602_120000.jpg") {
		t.Fatalf("event payload missing: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}

	if bus.SubscriberCount() != 0 {
		t.Fatal("handler left its subscription behind")
	}
}

func TestSSEExitsWhenDroppedByBus(t *testing.T) {
	bus := events.NewBus(1, testLogger{})
	handler := NewEventsHandler(bus, testLogger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(done)
	}()

	waitForSubscriber(t, bus)

	// Flood faster than the handler drains; with a queue depth of one
	// the bus drops the subscriber, which must end the stream
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never overflowed")
		}
		bus.Publish(events.NewStatus(events.StatusRunning))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after being dropped")
	}
}
