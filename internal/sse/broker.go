// Package sse implements a Server-Sent Events broker that tells preview
// clients about export runs.
package sse

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/vaultsite/internal/models"
)

// Event types.
const (
	TypeExportCompleted = "export.completed"
	TypeExportFailed    = "export.failed"
	TypeSiteReload      = "site.reload"
	TypeVaultChanged    = "vault.changed"
)

// Heartbeat is the interval of comment frames that keep idle streams open
// through proxies.
var Heartbeat = 30 * time.Second

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single loop goroutine owns the client set, the event sequence and the
// reload throttle; public methods talk to it over channels.
type Broker struct {
	reloadMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	exportCh      chan models.ExportEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. At most one site.reload event is sent
// per reloadThrottle.
func NewBroker(reloadThrottle time.Duration) *Broker {
	if reloadThrottle <= 0 {
		reloadThrottle = time.Second
	}

	b := &Broker{
		reloadMin:     reloadThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		exportCh:      make(chan models.ExportEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// hub is the state owned by the broker loop.
type hub struct {
	clients    map[chan []byte]struct{}
	seq        uint64
	lastReload time.Time
	reloadMin  time.Duration
}

// frame encodes one event in the text/event-stream format.
func frame(id uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(payload)+len(event.Type)+32)
	buf = append(buf, "event: "...)
	buf = append(buf, event.Type...)
	buf = append(buf, "\nid: "...)
	buf = strconv.AppendUint(buf, id, 10)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf, nil
}

func (h *hub) broadcast(event Event) {
	h.seq++
	msg, err := frame(h.seq, event)
	if err != nil {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall the loop.
		}
	}
}

func (h *hub) export(ev models.ExportEvent) {
	if ev.Summary == nil {
		h.broadcast(Event{Type: TypeExportFailed, Data: map[string]string{"error": ev.Error}})
		return
	}
	h.broadcast(Event{Type: TypeExportCompleted, Data: ev})

	if len(ev.Changed) == 0 {
		return
	}
	now := time.Now()
	if now.Sub(h.lastReload) < h.reloadMin {
		return
	}
	h.lastReload = now
	h.broadcast(Event{Type: TypeSiteReload, Data: map[string][]string{"changed": ev.Changed}})
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{clients: make(map[chan []byte]struct{}), reloadMin: b.reloadMin}
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			h.clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			h.broadcast(event)

		case ev := <-b.exportCh:
			h.export(ev)

		case resp := <-b.countReqCh:
			resp <- len(h.clients)
		}
	}
}

// Close stops the loop and closes all client channels. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. The channel is closed
// by Unsubscribe or Close.
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

// Unsubscribe removes a client and closes its channel.
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
	case b.countReqCh <- resp:
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
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishExport publishes the outcome of an export run and, when files
// changed, a throttled site.reload event. It matches siteservice.Listener.
func (b *Broker) PublishExport(ev models.ExportEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.exportCh <- ev:
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

	ping := time.NewTicker(Heartbeat)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
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
