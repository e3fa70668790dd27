package repositories

import (
	"context"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// SessionRepository defines the interface for visitor sessions.
type SessionRepository interface {
	// Upsert atomically creates or updates the session keyed by sessionID
	Upsert(ctx context.Context, sessionID string, create CreateFunc[entities.VisitorSession], update UpdateFunc[entities.VisitorSession]) (*entities.VisitorSession, bool, error)

	// ListByVisitor returns the most recent sessions of a visitor, newest first
	ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.VisitorSession, error)

	// ListStartedBetween returns sessions started in [start, end], oldest first
	ListStartedBetween(ctx context.Context, start, end time.Time) ([]*entities.VisitorSession, error)
}
