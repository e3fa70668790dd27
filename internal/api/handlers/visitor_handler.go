package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/hirepulse/visitor-telemetry/internal/application/services"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// VisitorQueryService defines the visitor read operations used by the handler.
type VisitorQueryService interface {
	GetVisitor(ctx context.Context, visitorID string) (*services.VisitorDetail, error)
	ListVisitors(ctx context.Context, q services.ListVisitorsQuery) (*services.VisitorPage, error)
}

// VisitorStatusService defines the status update used by the handler.
type VisitorStatusService interface {
	SetVisitorStatus(ctx context.Context, visitorID string, status entities.VisitorStatus) error
}

// VisitorHandler handles visitor lookups and status changes
type VisitorHandler struct {
	queries VisitorQueryService
	status  VisitorStatusService
}

// NewVisitorHandler creates a new visitor handler
func NewVisitorHandler(queries VisitorQueryService, status VisitorStatusService) *VisitorHandler {
	return &VisitorHandler{
		queries: queries,
		status:  status,
	}
}

// ListVisitors handles GET /api/visitors
func (h *VisitorHandler) ListVisitors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := intParam(query.Get("page"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid page parameter")
		return
	}
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}

	result, err := h.queries.ListVisitors(r.Context(), services.ListVisitorsQuery{
		Page:    page,
		Limit:   limit,
		Type:    entities.VisitorType(strings.ToUpper(query.Get("type"))),
		Status:  entities.VisitorStatus(strings.ToUpper(query.Get("status"))),
		Email:   query.Get("email"),
		Country: query.Get("country"),
		Q:       query.Get("q"),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetVisitor handles GET /api/visitors/{visitorId}
func (h *VisitorHandler) GetVisitor(w http.ResponseWriter, r *http.Request) {
	visitorID := r.PathValue("visitorId")
	if visitorID == "" {
		respondWithError(w, http.StatusBadRequest, "visitor ID is required")
		return
	}

	visitor, err := h.queries.GetVisitor(r.Context(), visitorID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, visitor)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/visitors/{visitorId}/status
func (h *VisitorHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	visitorID := r.PathValue("visitorId")
	if visitorID == "" {
		respondWithError(w, http.StatusBadRequest, "visitor ID is required")
		return
	}

	var payload statusRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	status := entities.VisitorStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	if err := h.status.SetVisitorStatus(r.Context(), visitorID, status); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"visitorId": visitorID,
		"status":    status,
	})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
