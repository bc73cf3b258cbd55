package uistream

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/dhabaclub/dhaba/internal/pos"
)

// SSEHandler streams order updates and core notices to the presentation
// layer over Server-Sent Events.
type SSEHandler struct {
	hub     *Hub
	notices *pos.NoticeHub
	logger  aqm.Logger
}

func NewSSEHandler(hub *Hub, notices *pos.NoticeHub, logger aqm.Logger) *SSEHandler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &SSEHandler{
		hub:     hub,
		notices: notices,
		logger:  logger,
	}
}

// ServeHTTP implements http.Handler for the SSE endpoint.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()

	eventChan := h.hub.Subscribe(subscriberID)
	defer h.hub.Unsubscribe(subscriberID)

	var noticeChan <-chan pos.Notice
	if h.notices != nil {
		noticeChan = h.notices.Subscribe(subscriberID)
		defer h.notices.Unsubscribe(subscriberID)
	}

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flush(w)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case evt, ok := <-eventChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, evt.Data)
			flush(w)

		case notice, ok := <-noticeChan:
			if !ok {
				noticeChan = nil
				continue
			}
			fmt.Fprintf(w, "event: notice\ndata: {\"level\":%q,\"message\":%q}\n\n", notice.Level, notice.Message)
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
