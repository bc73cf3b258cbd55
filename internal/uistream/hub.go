package uistream

import (
	"encoding/json"
	"sync"

	"github.com/aquamarinepk/aqm"
)

// Event is one server-sent event: a name and a JSON payload.
type Event struct {
	Name string
	Data []byte
}

// Hub broadcasts events to connected SSE subscribers. Subscribers that fall
// behind drop events instead of blocking the broadcast path; the polling
// backstop repairs anything they missed.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      aqm.Logger
}

func NewHub(logger aqm.Logger) *Hub {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Hub{
		subscribers: make(map[string]chan Event),
		logger:      logger,
	}
}

// Subscribe adds a subscriber and returns its event channel.
func (h *Hub) Subscribe(subscriberID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 100)
	h.subscribers[subscriberID] = ch

	h.logger.Info("new SSE subscriber", "subscriber_id", subscriberID, "total_subscribers", len(h.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[subscriberID]; ok {
		close(ch)
		delete(h.subscribers, subscriberID)
		h.logger.Info("SSE subscriber disconnected", "subscriber_id", subscriberID, "total_subscribers", len(h.subscribers))
	}
}

// Broadcast marshals the payload and sends it to every subscriber.
func (h *Hub) Broadcast(name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal SSE payload", "event", name, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- Event{Name: name, Data: data}:
		default:
			h.logger.Info("subscriber channel full, dropping event", "subscriber_id", subscriberID, "event", name)
		}
	}
}

// Close shuts down every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
