package routes

import (
	"net/http"

	"github.com/hirepulse/visitor-telemetry/internal/api/handlers"
	"github.com/hirepulse/visitor-telemetry/internal/api/middleware"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	trackingHandler  *handlers.TrackingHandler
	presenceHandler  *handlers.PresenceHandler
	visitorHandler   *handlers.VisitorHandler
	analyticsHandler *handlers.AnalyticsHandler
	healthHandler    *handlers.HealthHandler
	sseHandler       *handlers.SSEHandler

	visitors       repositories.VisitorRepository
	allowedOrigins []string
	metrics        *observability.Metrics
}

// Config carries the cross-cutting dependencies of the router
type Config struct {
	// Visitors backs the request-scoped batch loaders; nil disables them.
	Visitors       repositories.VisitorRepository
	AllowedOrigins []string
	Metrics        *observability.Metrics
}

// NewRouter creates a new router. sseHandler may be nil when streams are served elsewhere.
func NewRouter(
	trackingHandler *handlers.TrackingHandler,
	presenceHandler *handlers.PresenceHandler,
	visitorHandler *handlers.VisitorHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	healthHandler *handlers.HealthHandler,
	sseHandler *handlers.SSEHandler,
	cfg Config,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		trackingHandler:  trackingHandler,
		presenceHandler:  presenceHandler,
		visitorHandler:   visitorHandler,
		analyticsHandler: analyticsHandler,
		healthHandler:    healthHandler,
		sseHandler:       sseHandler,
		visitors:         cfg.Visitors,
		allowedOrigins:   cfg.AllowedOrigins,
		metrics:          cfg.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Ingestion
	r.mux.HandleFunc("POST /api/track/visitor", r.trackingHandler.TrackVisitor)
	r.mux.HandleFunc("POST /api/track/session", r.trackingHandler.TrackSession)
	r.mux.HandleFunc("POST /api/track/pageview", r.trackingHandler.TrackPageView)
	r.mux.HandleFunc("POST /api/track/event", r.trackingHandler.TrackEvent)
	r.mux.HandleFunc("POST /api/track/form", r.trackingHandler.TrackForm)

	// Live presence
	r.mux.HandleFunc("POST /api/presence/heartbeat", r.presenceHandler.Heartbeat)
	r.mux.HandleFunc("GET /api/presence/live", r.presenceHandler.ListLive)
	r.mux.HandleFunc("POST /api/admin/presence/reap", r.presenceHandler.Reap)

	// Visitors
	r.mux.HandleFunc("GET /api/visitors", r.visitorHandler.ListVisitors)
	r.mux.HandleFunc("GET /api/visitors/{visitorId}", r.visitorHandler.GetVisitor)
	r.mux.HandleFunc("PATCH /api/visitors/{visitorId}/status", r.visitorHandler.UpdateStatus)

	r.mux.HandleFunc("GET /api/analytics", r.analyticsHandler.GetAnalytics)

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/presence", r.sseHandler.StreamPresence)
		r.mux.HandleFunc("GET /api/stream/presence/{visitorId}", r.sseHandler.StreamVisitorPresence)
		r.mux.HandleFunc("GET /api/stream/stats", r.sseHandler.Stats)
	}

	// The observability wrapper sits directly on the mux so it can read the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	if r.visitors != nil {
		handler = middleware.LoadersMiddleware(r.visitors)(handler)
	}
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
