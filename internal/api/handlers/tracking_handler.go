package handlers

import (
	"context"
	"net/http"

	"github.com/hirepulse/visitor-telemetry/internal/application/services"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// IdentityService defines the visitor identity operations used by the handler.
type IdentityService interface {
	TrackVisitor(ctx context.Context, cmd services.TrackVisitorCommand) (*entities.Visitor, error)
}

// SessionService defines the session operations used by the handler.
type SessionService interface {
	TrackSession(ctx context.Context, cmd services.TrackSessionCommand) (*entities.VisitorSession, error)
}

// ActivityService defines the activity operations used by the handler.
type ActivityService interface {
	TrackPageView(ctx context.Context, cmd services.TrackPageViewCommand) (*entities.PageView, error)
	TrackEvent(ctx context.Context, cmd services.TrackEventCommand) (*entities.VisitorEvent, error)
	TrackFormSubmission(ctx context.Context, cmd services.TrackFormCommand) (*entities.FormSubmission, error)
}

// TrackingHandler handles the ingestion endpoints
type TrackingHandler struct {
	identity IdentityService
	sessions SessionService
	activity ActivityService
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(identity IdentityService, sessions SessionService, activity ActivityService) *TrackingHandler {
	return &TrackingHandler{
		identity: identity,
		sessions: sessions,
		activity: activity,
	}
}

// TrackVisitor handles POST /api/track/visitor
func (h *TrackingHandler) TrackVisitor(w http.ResponseWriter, r *http.Request) {
	var cmd services.TrackVisitorCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}
	requestOrigin(r, &cmd.IPAddress, &cmd.UserAgent)

	visitor, err := h.identity.TrackVisitor(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"visitor": visitor,
	})
}

// TrackSession handles POST /api/track/session
func (h *TrackingHandler) TrackSession(w http.ResponseWriter, r *http.Request) {
	var cmd services.TrackSessionCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}
	requestOrigin(r, &cmd.IPAddress, &cmd.UserAgent)

	session, err := h.sessions.TrackSession(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"session": session,
	})
}

// TrackPageView handles POST /api/track/pageview
func (h *TrackingHandler) TrackPageView(w http.ResponseWriter, r *http.Request) {
	var cmd services.TrackPageViewCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}

	pageView, err := h.activity.TrackPageView(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"pageView": pageView,
	})
}

// TrackEvent handles POST /api/track/event
func (h *TrackingHandler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var cmd services.TrackEventCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}

	event, err := h.activity.TrackEvent(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"event":   event,
	})
}

// TrackForm handles POST /api/track/form
func (h *TrackingHandler) TrackForm(w http.ResponseWriter, r *http.Request) {
	var cmd services.TrackFormCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}

	submission, err := h.activity.TrackFormSubmission(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"submission": submission,
	})
}
