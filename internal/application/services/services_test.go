package services

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/memory"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const testUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type stubEnrichment struct {
	facts entities.EnrichmentFacts
	err   error
	block bool
	calls int
}

func (s *stubEnrichment) Enrich(ctx context.Context, ip, userAgent string) (entities.EnrichmentFacts, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return entities.EnrichmentFacts{}, ctx.Err()
	}
	return s.facts, s.err
}

type fixture struct {
	store      *memory.Store
	clock      *quartz.Mock
	enrichment *stubEnrichment
	identity   *IdentityService
	sessions   *SessionService
	activity   *ActivityService
	presence   *PresenceService
	analytics  *AnalyticsService
	queries    *VisitorQueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := quartz.NewMock(t)
	clock.Set(base)

	store := memory.NewStore()
	enrichment := &stubEnrichment{facts: entities.EnrichmentFacts{
		Country: "Nigeria", City: "Lagos", Device: "desktop", Browser: "Chrome", OS: "Mac OS X",
	}}
	opts := Options{Clock: clock, EnrichmentTimeout: 50 * time.Millisecond}

	identity := NewIdentityService(store.Visitors(), enrichment, opts)
	return &fixture{
		store:      store,
		clock:      clock,
		enrichment: enrichment,
		identity:   identity,
		sessions:   NewSessionService(store.Sessions(), enrichment, opts),
		activity:   NewActivityService(store.PageViews(), store.Events(), store.Forms(), identity, opts),
		presence:   NewPresenceService(store.LiveVisitors(), store.Visitors(), enrichment, opts),
		analytics:  NewAnalyticsService(store.Visitors(), store.Sessions(), store.PageViews(), store.Forms(), opts),
		queries:    NewVisitorQueryService(store.Visitors(), store.Sessions(), store.PageViews(), store.Events(), store.Forms(), opts),
	}
}

func (f *fixture) trackVisitor(t *testing.T, visitorID, page string) *entities.Visitor {
	t.Helper()
	v, err := f.identity.TrackVisitor(context.Background(), TrackVisitorCommand{
		VisitorID: visitorID, Page: page, IPAddress: "203.0.113.7", UserAgent: testUA,
	})
	require.NoError(t, err)
	return v
}

func ptr[T any](v T) *T { return &v }
