package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// AnalyticsService defines the aggregation used by the handler.
type AnalyticsService interface {
	Aggregate(ctx context.Context, start, end time.Time) (*entities.AnalyticsReport, error)
}

// AnalyticsHandler serves windowed visitor statistics
type AnalyticsHandler struct {
	analytics AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// GetAnalytics handles GET /api/analytics?start=RFC3339&end=RFC3339.
// Omitted bounds fall back to the service defaults.
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	start, err := timeParam(query.Get("start"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "start must be an RFC3339 timestamp")
		return
	}
	end, err := timeParam(query.Get("end"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "end must be an RFC3339 timestamp")
		return
	}

	report, err := h.analytics.Aggregate(r.Context(), start, end)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

func timeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
