package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
)

const defaultKeepAlive = 30 * time.Second

// SSEHandler streams presence events as Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	keepAlive time.Duration
	clients   map[string]int // channel -> connected clients
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		keepAlive: defaultKeepAlive,
		clients:   make(map[string]int),
	}
}

// SetKeepAlive changes the interval between keep-alive events
func (h *SSEHandler) SetKeepAlive(d time.Duration) {
	h.keepAlive = d
}

// StreamPresence handles GET /api/stream/presence
func (h *SSEHandler) StreamPresence(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, providers.EventChannelPresenceUpdates, map[string]interface{}{})
}

// StreamVisitorPresence handles GET /api/stream/presence/{visitorId}
func (h *SSEHandler) StreamVisitorPresence(w http.ResponseWriter, r *http.Request) {
	visitorID := r.PathValue("visitorId")
	if visitorID == "" {
		respondWithError(w, http.StatusBadRequest, "visitor ID is required")
		return
	}
	h.stream(w, r, providers.GetVisitorChannel(visitorID), map[string]interface{}{
		"visitor_id": visitorID,
	})
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, hello map[string]interface{}) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The bus closes eventChan once the request context is done.
	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to presence channel")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.registerClient(channel)
	defer h.unregisterClient(channel)

	hello["timestamp"] = time.Now().UTC()
	h.sendEvent(w, "connected", hello)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("channel", channel).Msg("client disconnected from presence stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) registerClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[channel]++
	log.Debug().Str("channel", channel).Int("total", h.clients[channel]).Msg("stream client registered")
}

func (h *SSEHandler) unregisterClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal stream event")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}

// Stats handles GET /api/stream/stats
func (h *SSEHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]int{
		"connected_clients": h.GetClientCount(),
	})
}
