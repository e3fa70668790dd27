package repositories

import (
	"context"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// PageViewRepository defines the interface for append-only page views.
type PageViewRepository interface {
	Create(ctx context.Context, pageView *entities.PageView) error
	// ListByVisitor returns the most recent page views of a visitor, newest first
	ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.PageView, error)
	// ListBetween returns page views created in [start, end], oldest first
	ListBetween(ctx context.Context, start, end time.Time) ([]*entities.PageView, error)
}

// VisitorEventRepository defines the interface for append-only behavioral events.
type VisitorEventRepository interface {
	Create(ctx context.Context, event *entities.VisitorEvent) error
	ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.VisitorEvent, error)
}

// FormSubmissionRepository defines the interface for append-only form submissions.
type FormSubmissionRepository interface {
	Create(ctx context.Context, submission *entities.FormSubmission) error
	ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.FormSubmission, error)
	ListBetween(ctx context.Context, start, end time.Time) ([]*entities.FormSubmission, error)
}
