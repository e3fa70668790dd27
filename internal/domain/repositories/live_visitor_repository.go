package repositories

import (
	"context"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// LiveVisitorRepository defines the interface for the live presence register.
// Every write for a key is atomic with respect to other writes for the same key.
type LiveVisitorRepository interface {
	// Upsert atomically creates or updates the live record keyed by visitorID
	Upsert(ctx context.Context, visitorID string, create CreateFunc[entities.LiveVisitor], update UpdateFunc[entities.LiveVisitor]) (*entities.LiveVisitor, bool, error)

	// Get retrieves a live record
	Get(ctx context.Context, visitorID string) (*entities.LiveVisitor, error)

	// ListActiveSince returns records whose last activity is strictly after since, most recent first
	ListActiveSince(ctx context.Context, since time.Time) ([]*entities.LiveVisitor, error)

	// ListLastActiveBefore returns the ids of records whose last activity is at or before cutoff
	ListLastActiveBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// MarkInactiveIf sets IsActive=false when cond still holds on the stored record.
	// It reports whether the record was changed.
	MarkInactiveIf(ctx context.Context, visitorID string, cond Predicate[entities.LiveVisitor]) (bool, error)

	// DeleteIf removes the record when cond still holds on the stored record.
	// It reports whether the record was deleted.
	DeleteIf(ctx context.Context, visitorID string, cond Predicate[entities.LiveVisitor]) (bool, error)
}
