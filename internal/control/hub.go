package control

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans progress events out to subscribers. Slow subscribers lose events
// instead of blocking the session.
type Hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan improvement.ProgressEvent
	closed bool
	log    *slog.Logger
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan improvement.ProgressEvent),
		log:  logger.Component("hub"),
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan improvement.ProgressEvent, func()) {
	if buffer <= 0 {
		buffer = subscriberBuffer
	}
	ch := make(chan improvement.ProgressEvent, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of registered subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast delivers ev to every subscriber with room for it
func (h *Hub) Broadcast(ev improvement.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Debug("subscriber is behind, dropping event", "subscriber", id, "type", ev.Type)
		}
	}
}

// Close unregisters every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// ServeHTTP upgrades the request to a websocket and streams events as JSON
// until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	events, cancel := h.Subscribe(subscriberBuffer)
	defer cancel()

	// the read loop only notices the client closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				h.log.Warn("failed to write websocket event", "error", err)
				return
			}
		}
	}
}
