package providers

import (
	"context"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// EnrichmentProvider derives geo and device facts from a raw IP and user agent.
// Unresolvable input yields empty facts, not an error. An error means the
// provider itself is unavailable.
type EnrichmentProvider interface {
	Enrich(ctx context.Context, ip, userAgent string) (entities.EnrichmentFacts, error)
}
