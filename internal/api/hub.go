package api

import (
	"sync"

	"github.com/sells-group/mc-extractor/internal/model"
)

const subscriberBuffer = 64

// Hub fans run events out to stream subscribers. A subscriber whose buffer
// is full misses events rather than slowing the run down.
type Hub struct {
	mu      sync.Mutex
	clients map[chan model.Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan model.Event]struct{})}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() chan model.Event {
	ch := make(chan model.Event, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (h *Hub) Unsubscribe(ch chan model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; !ok {
		return
	}
	delete(h.clients, ch)
	close(ch)
}

// Publish delivers ev to every subscriber with room for it.
func (h *Hub) Publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}
