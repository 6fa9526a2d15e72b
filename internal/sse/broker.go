// Package sse streams diary change notifications to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types sent to clients.
const (
	TypeDayUpdated      = "day.updated"
	TypeDayDeleted      = "day.deleted"
	TypeCalendarUpdated = "calendar.updated"
)

// Event is one message for all subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// hub is the state owned by the broker loop.
type hub struct {
	clients      map[chan []byte]struct{}
	seq          uint64
	lastCalendar time.Time
	calendarMin  time.Duration
}

// send frames event with the next sequence id and offers it to every client.
// Clients whose buffer is full miss the message.
func (h *hub) send(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	h.seq++
	msg := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, event.Type, payload))
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// calendarChanged sends calendar.updated unless one went out within
// calendarMin.
func (h *hub) calendarChanged(now time.Time) {
	if now.Sub(h.lastCalendar) < h.calendarMin {
		return
	}
	h.lastCalendar = now
	h.send(Event{Type: TypeCalendarUpdated, Data: map[string]string{}})
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets how often idle streams get a keepalive comment. Zero
// disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// Broker fans diary events out to connected clients. All client state lives
// in one goroutine; methods hand it closures over ops.
type Broker struct {
	ops       chan func(*hub)
	heartbeat time.Duration

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. Day changes trigger calendar.updated at most
// once per calendarThrottle.
func NewBroker(calendarThrottle time.Duration, opts ...Option) *Broker {
	if calendarThrottle <= 0 {
		calendarThrottle = 2 * time.Second
	}
	b := &Broker{
		ops:       make(chan func(*hub)),
		heartbeat: 30 * time.Second,
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	h := &hub{clients: make(map[chan []byte]struct{}), calendarMin: calendarThrottle}
	go b.loop(h)
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do runs op on the broker goroutine. It reports false once the broker is
// closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the broker and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or
// Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	var n int
	done := make(chan struct{})
	if !b.do(func(h *hub) { n = len(h.clients); close(done) }) {
		return 0
	}
	select {
	case <-done:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends event to every client as is.
func (b *Broker) Publish(event Event) {
	b.do(func(h *hub) { h.send(event) })
}

// PublishDayEvent announces that one day was updated or deleted, followed by
// a throttled calendar.updated.
func (b *Broker) PublishDayEvent(kind, key string) {
	typ := TypeDayUpdated
	if kind == "deleted" {
		typ = TypeDayDeleted
	}
	b.do(func(h *hub) {
		h.send(Event{Type: typ, Data: map[string]string{"dateKey": key}})
		h.calendarChanged(time.Now())
	})
}

// PublishCalendarEvent announces a whole-calendar change such as a save,
// an import or an external edit. It is never throttled.
func (b *Broker) PublishCalendarEvent(reason string) {
	b.Publish(Event{Type: TypeCalendarUpdated, Data: map[string]string{"reason": reason}})
}

// ServeHTTP streams events to one client (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
