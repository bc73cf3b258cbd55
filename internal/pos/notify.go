package pos

import (
	"sync"

	"github.com/aquamarinepk/aqm"
)

// Notice levels. The core emits notices; the presentation layer decides how
// to render them (toast, banner, status line).
const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// Notice is an explicit notification emitted by the core so the UI layer can
// subscribe instead of the core reaching into presentation concerns.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NoticeHub fans notices out to subscribers. Slow subscribers drop notices
// rather than block the emitting path.
type NoticeHub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Notice
	logger      aqm.Logger
}

func NewNoticeHub(logger aqm.Logger) *NoticeHub {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &NoticeHub{
		subscribers: make(map[string]chan Notice),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and returns its channel.
func (h *NoticeHub) Subscribe(subscriberID string) <-chan Notice {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Notice, 32)
	h.subscribers[subscriberID] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *NoticeHub) Unsubscribe(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[subscriberID]; ok {
		close(ch)
		delete(h.subscribers, subscriberID)
	}
}

// Publish delivers a notice to every subscriber.
func (h *NoticeHub) Publish(level, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	notice := Notice{Level: level, Message: message}
	for id, ch := range h.subscribers {
		select {
		case ch <- notice:
		default:
			h.logger.Info("notice subscriber channel full, dropping", "subscriber_id", id)
		}
	}
}

// NotifyError publishes a notice matching the error taxonomy. No error in
// the core goes without at least a user-visible notification.
func (h *NoticeHub) NotifyError(err error) {
	switch {
	case err == nil:
		return
	case IsValidationError(err), IsConflictError(err):
		h.Publish(NoticeWarning, err.Error())
	default:
		h.Publish(NoticeError, err.Error())
	}
}
