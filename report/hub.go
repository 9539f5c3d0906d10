package report

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"i4.energy/across/pulsemon/monitor"
)

const (
	DefaultSubscriberBuffer = 100
	DefaultPingInterval     = 30 * time.Second
)

// Hub broadcasts events to in-process subscribers. Broadcast never blocks:
// a subscriber whose channel is full misses the event.
type Hub struct {
	logger       *slog.Logger
	pingInterval time.Duration
	upgrader     websocket.Upgrader
	edges        edgeDetector

	mu   sync.RWMutex
	pool map[chan []byte]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:       logger.With("component", "hub"),
		pingInterval: DefaultPingInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pool: make(map[chan []byte]struct{}),
	}
}

// Observe implements monitor.Observer.
func (h *Hub) Observe(r monitor.Reading) {
	for _, e := range eventsFor(&h.edges, r) {
		h.Publish(e)
	}
}

// Publish encodes e and broadcasts it.
func (h *Hub) Publish(e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encode event", "error", err)
		return
	}
	h.Broadcast(msg)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.pool {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe returns a channel receiving every broadcast from now on and a
// function that unsubscribes and closes it.
func (h *Hub) Subscribe(buffer int) (<-chan []byte, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan []byte, buffer)

	h.mu.Lock()
	h.pool[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.pool[ch]; ok {
			delete(h.pool, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pool)
}

// ServeHTTP upgrades the request to a websocket and streams events as text
// frames until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe(0)
	defer cancel()

	h.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	// Reads only surface the close frame; a failed read ends the stream.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			h.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case msg := <-events:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Info("websocket client disconnected", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Info("websocket client disconnected", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
