// Package sse implements a Server-Sent Events broker that streams vault
// changes and agent run progress to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// heartbeatInterval is how often a comment frame is sent to keep idle
// connections alive through proxies.
const heartbeatInterval = 25 * time.Second

// clientBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing events rather than blocking the loop.
const clientBuffer = 64

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type vaultEventReq struct {
	kind string
	path string
}

type runEventReq struct {
	typ  string
	data any
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (subscribers, event sequence, graph throttle timestamp). Public
// methods communicate with this loop through channels, so no mutexes are
// required.
type Broker struct {
	graphMin time.Duration

	joinCh  chan chan []byte
	partCh  chan chan []byte
	eventCh chan Event
	vaultCh chan vaultEventReq
	runCh   chan runEventReq
	countCh chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin: graphThrottle,
		joinCh:   make(chan chan []byte),
		partCh:   make(chan chan []byte),
		eventCh:  make(chan Event, 256),
		vaultCh:  make(chan vaultEventReq, 256),
		runCh:    make(chan runEventReq, 256),
		countCh:  make(chan chan int),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subscribers := make(map[chan []byte]struct{})
	var lastGraph time.Time
	var seq uint64

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	send := func(raw []byte) {
		for ch := range subscribers {
			select {
			case ch <- raw:
			default:
				// Subscriber buffer full; drop rather than block the loop.
			}
		}
	}

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		send([]byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)))
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subscribers {
				close(ch)
			}
			return

		case ch := <-b.joinCh:
			subscribers[ch] = struct{}{}

		case ch := <-b.partCh:
			if _, ok := subscribers[ch]; ok {
				delete(subscribers, ch)
				close(ch)
			}

		case event := <-b.eventCh:
			broadcast(event)

		case req := <-b.vaultCh:
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{Type: "note." + req.kind, Data: map[string]string{"path": req.path}})
			}

			now := time.Now()
			if now.Sub(lastGraph) >= b.graphMin {
				lastGraph = now
				broadcast(Event{Type: "graph.updated", Data: map[string]string{}})
			}

		case req := <-b.runCh:
			broadcast(Event{Type: "run." + req.typ, Data: req.data})

		case <-heartbeat.C:
			send([]byte(": ping\n\n"))

		case resp := <-b.countCh:
			resp <- len(subscribers)
		}
	}
}

// Close gracefully stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.joinCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.partCh <- ch:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- event:
	case <-b.stopped:
	}
}

// PublishVaultEvent publishes a vault file change and a throttled
// graph.updated event.
func (b *Broker) PublishVaultEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.vaultCh <- vaultEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishRunEvent publishes one agent run progress event. typ is the agent
// event type; the full event rides in data.
func (b *Broker) PublishRunEvent(typ string, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.runCh <- runEventReq{typ: typ, data: data}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
