package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "day.updated", Data: map[string]string{"dateKey": "2_14_2024"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: day.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"dateKey":"2_14_2024"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDayEvent_CalendarThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDayEvent("updated", "0_1_2024")
	b.PublishDayEvent("deleted", "0_2_2024")

	time.Sleep(50 * time.Millisecond)
	calendarCount := 0
	dayCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			switch {
			case strings.Contains(s, "calendar.updated"):
				calendarCount++
			case strings.Contains(s, "event: day."):
				dayCount++
			}
		default:
			break loop
		}
	}

	if dayCount != 2 {
		t.Errorf("day events = %d, want 2", dayCount)
	}
	if calendarCount != 1 {
		t.Errorf("calendar events = %d, want 1 (throttled)", calendarCount)
	}
}

func TestPublishCalendarEvent(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishCalendarEvent("saved")
	b.PublishCalendarEvent("imported")

	for _, reason := range []string{"saved", "imported"} {
		select {
		case msg := <-ch:
			if !strings.Contains(string(msg), `"reason":"`+reason+`"`) {
				t.Errorf("message = %q, want reason %s", msg, reason)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for calendar event")
		}
	}
}

// syncRecorder guards the body so the test can read it while the handler
// may still be writing.
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishDayEvent("updated", "3_1_2024")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: day.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Client buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "day.updated", Data: map[string]string{"dateKey": "0_1_2024"}})
	b.PublishDayEvent("updated", "0_1_2024")
	b.PublishCalendarEvent("saved")
}

func TestMessagesCarrySequenceIDs(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishCalendarEvent("saved")
	b.PublishDayEvent("deleted", "0_1_2024")

	for _, want := range []string{"id: 1\nevent: calendar.updated", "id: 2\nevent: day.deleted", "id: 3\nevent: calendar.updated"} {
		select {
		case msg := <-ch:
			if !strings.HasPrefix(string(msg), want) {
				t.Errorf("message = %q, want prefix %q", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(10*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.body(), ": keepalive\n\n") {
		t.Errorf("no keepalive in %q", w.body())
	}
}
