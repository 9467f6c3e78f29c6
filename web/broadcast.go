package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore"
)

// clientBuffer sets how many frames a slow subscriber may fall behind
// before frames are dropped for it.
const clientBuffer = 8

// frameHub fans completed frames out to SSE subscribers. Publish never
// blocks: a subscriber that cannot keep up loses frames, not the studio.
type frameHub struct {
	mu      sync.Mutex
	clients map[chan rackcore.Frame]struct{}
	closed  bool
}

func newFrameHub() *frameHub {
	return &frameHub{
		clients: make(map[chan rackcore.Frame]struct{}),
	}
}

// publish delivers the frame to every subscriber, skipping full buffers.
func (h *frameHub) publish(frame rackcore.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client <- frame:
		default:
		}
	}
}

// subscribe registers a new client channel.
func (h *frameHub) subscribe() (chan rackcore.Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	client := make(chan rackcore.Frame, clientBuffer)
	h.clients[client] = struct{}{}
	return client, true
}

// unsubscribe removes a client channel.
func (h *frameHub) unsubscribe(client chan rackcore.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client)
	}
}

// closeAll disconnects every subscriber and refuses new ones.
func (h *frameHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client)
	}
}

// count returns the number of connected subscribers.
func (h *frameHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleEvents streams frames to the client as Server-Sent Events until the
// client disconnects or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	client, ok := s.hub.subscribe()
	if !ok {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logrus.WithFields(logrus.Fields{
		"function": "handleEvents",
		"clients":  s.hub.count(),
	}).Info("Frame stream client connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-client:
			if !open {
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "handleEvents",
					"error":    err.Error(),
				}).Warn("Dropping unencodable frame")
				continue
			}
			fmt.Fprintf(w, "event: frame\n")
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
