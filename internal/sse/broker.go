// Package sse pushes plot and edit-feed changes to the UI as server-sent
// events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypePlotCreated = "plot.created"
	TypePlotUpdated = "plot.updated"
	TypePlotDeleted = "plot.deleted"
	TypeMapUpdated  = "map.updated"
	TypeEditsLoaded = "edits.loaded"
	TypeEditsFailed = "edits.failed"
)

var plotEventTypes = map[string]string{
	"created": TypePlotCreated,
	"updated": TypePlotUpdated,
	"deleted": TypePlotDeleted,
}

// Event is one message to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type plotChange struct {
	kind string
	path string
}

// Broker fans events out to connected clients.
//
// All client state lives in a single loop goroutine; the exported methods
// talk to it over channels. Plot changes also emit map.updated, at most once
// per throttle interval, so map layers reload without a storm of requests.
type Broker struct {
	mapThrottle time.Duration
	heartbeat   time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	plotCh        chan plotChange
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. mapThrottle <= 0 defaults to two seconds.
func NewBroker(mapThrottle time.Duration) *Broker {
	if mapThrottle <= 0 {
		mapThrottle = 2 * time.Second
	}
	b := &Broker{
		mapThrottle:   mapThrottle,
		heartbeat:     15 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		plotCh:        make(chan plotChange, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastMap time.Time
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client; drop rather than stall the loop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case c := <-b.plotCh:
			typ, ok := plotEventTypes[c.kind]
			if !ok {
				continue
			}
			broadcast(Event{Type: typ, Data: map[string]string{"path": c.path}})
			if now := time.Now(); now.Sub(lastMap) >= b.mapThrottle {
				lastMap = now
				broadcast(Event{Type: TypeMapUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed on
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client channel. It is a no-op once the broker is closed.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts event to all clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishPlotEvent broadcasts a plot change. kind is "created", "updated" or
// "deleted"; other kinds are ignored.
func (b *Broker) PublishPlotEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.plotCh <- plotChange{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishEdits reports the outcome of an edit-feed page load.
func (b *Broker) PublishEdits(data any, err error) {
	if err != nil {
		b.Publish(Event{Type: TypeEditsFailed, Data: map[string]any{"message": err.Error(), "retryable": true}})
		return
	}
	b.Publish(Event{Type: TypeEditsLoaded, Data: data})
}

// ServeHTTP streams events to one client (GET /api/events). A comment line
// is sent on every heartbeat so idle proxies keep the stream open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
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
