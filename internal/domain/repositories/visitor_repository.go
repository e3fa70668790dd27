package repositories

import (
	"context"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// VisitorRepository defines the interface for durable visitor identities.
type VisitorRepository interface {
	// Upsert atomically creates or updates the visitor keyed by visitorID.
	// Concurrent calls for the same key are serialized. The bool reports whether the record was created.
	Upsert(ctx context.Context, visitorID string, create CreateFunc[entities.Visitor], update UpdateFunc[entities.Visitor]) (*entities.Visitor, bool, error)

	// GetByVisitorID retrieves a visitor by its client-generated id
	GetByVisitorID(ctx context.Context, visitorID string) (*entities.Visitor, error)

	// GetByVisitorIDs retrieves multiple visitors. Unknown ids are skipped.
	GetByVisitorIDs(ctx context.Context, visitorIDs []string) ([]*entities.Visitor, error)

	// List retrieves visitors matching filter, most recently seen first, with the unpaged total
	List(ctx context.Context, filter VisitorFilter) ([]*entities.Visitor, int, error)

	// UpdateStatus sets the engagement status of a visitor and stamps it with updatedAt
	UpdateStatus(ctx context.Context, visitorID string, status entities.VisitorStatus, updatedAt time.Time) error

	// ListFirstSeenBetween returns visitors whose first visit falls in [start, end], oldest first
	ListFirstSeenBetween(ctx context.Context, start, end time.Time) ([]*entities.Visitor, error)
}

// VisitorFilter defines filters for listing visitors
type VisitorFilter struct {
	Type    entities.VisitorType
	Status  entities.VisitorStatus
	Email   string
	Country string
	// VisitorIDs restricts the listing to these ids when non-nil (search hits).
	VisitorIDs []string
	Limit      int
	Offset     int
}

// VisitorSearchRepository defines the interface for visitor free-text search (e.g. Typesense)
type VisitorSearchRepository interface {
	// Index indexes or re-indexes a visitor
	Index(ctx context.Context, visitor *entities.Visitor) error

	// Search returns the visitor ids matching query, best match first
	Search(ctx context.Context, query string, limit int) ([]string, error)
}
