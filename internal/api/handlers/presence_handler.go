package handlers

import (
	"context"
	"net/http"

	"github.com/hirepulse/visitor-telemetry/internal/application/services"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// PresenceService defines the live presence operations used by the handler.
type PresenceService interface {
	Heartbeat(ctx context.Context, cmd services.HeartbeatCommand) (*entities.LiveVisitor, error)
	ListLiveDetailed(ctx context.Context) ([]services.LiveVisitorView, error)
	Reap(ctx context.Context) (services.ReapResult, error)
}

// PresenceHandler handles heartbeats, the live listing and manual reaps
type PresenceHandler struct {
	presence PresenceService
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(presence PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Heartbeat handles POST /api/presence/heartbeat
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var cmd services.HeartbeatCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}
	requestOrigin(r, &cmd.IPAddress, &cmd.UserAgent)

	live, err := h.presence.Heartbeat(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"liveVisitor": live,
	})
}

// ListLive handles GET /api/presence/live
func (h *PresenceHandler) ListLive(w http.ResponseWriter, r *http.Request) {
	live, err := h.presence.ListLiveDetailed(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"visitors": live,
		"count":    len(live),
	})
}

// Reap handles POST /api/admin/presence/reap
func (h *PresenceHandler) Reap(w http.ResponseWriter, r *http.Request) {
	result, err := h.presence.Reap(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
