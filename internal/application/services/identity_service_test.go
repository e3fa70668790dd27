package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

func TestTrackVisitor_FirstSightThenFormMakesLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.trackVisitor(t, "v1", "/home")
	assert.Equal(t, entities.VisitorTypeAnonymous, v.Type)
	assert.Equal(t, 1, v.TotalVisits)
	assert.Equal(t, 1, v.TotalPageViews)
	assert.Equal(t, "Nigeria", v.Country)
	assert.Equal(t, []string{"/home"}, v.PagesVisited)

	form, err := f.activity.TrackFormSubmission(ctx, TrackFormCommand{
		VisitorID: "v1", FormType: "contact", Page: "/home", Email: "a@b.com",
	})
	require.NoError(t, err)
	assert.False(t, form.IsProcessed)

	detail, err := f.queries.GetVisitor(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeLead, detail.Type)
	assert.Equal(t, "a@b.com", detail.Email)
	assert.Equal(t, 10, detail.LeadScore)
	assert.Equal(t, entities.VisitorStatusConverted, detail.Status)
	require.Len(t, detail.FormSubmissions, 1)
}

func TestTrackVisitor_AttributionIsSetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.TrackVisitor(ctx, TrackVisitorCommand{
		VisitorID: "v1", Page: "/home", Referrer: "https://google.com", UTMSource: "google", UTMCampaign: "spring",
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	v, err := f.identity.TrackVisitor(ctx, TrackVisitorCommand{
		VisitorID: "v1", Page: "/pricing", Referrer: "https://bing.com", UTMSource: "bing",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://google.com", v.Referrer)
	assert.Equal(t, "google", v.UTMSource)
	assert.Equal(t, "spring", v.UTMCampaign)
	assert.Equal(t, 2, v.TotalVisits)
	assert.Equal(t, 2, v.TotalPageViews)
	assert.Equal(t, []string{"/home", "/pricing"}, v.PagesVisited)
	assert.True(t, v.FirstVisit.Equal(base))
	assert.True(t, v.LastVisit.Equal(base.Add(time.Minute)))
}

func TestTrackVisitor_ClassificationNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.identity.TrackVisitor(ctx, TrackVisitorCommand{VisitorID: "v1", Page: "/home", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeIdentified, v.Type, "any contact field identifies on first sight")

	_, err = f.activity.TrackFormSubmission(ctx, TrackFormCommand{VisitorID: "v1", FormType: "demo", Page: "/demo", Email: "ada@acme.io"})
	require.NoError(t, err)

	v = f.trackVisitor(t, "v1", "/careers")
	assert.Equal(t, entities.VisitorTypeLead, v.Type)
	assert.Equal(t, entities.VisitorStatusConverted, v.Status)
	assert.Equal(t, "Ada", v.Name, "known contact fields are kept")
	assert.Equal(t, "ada@acme.io", v.Email)
}

func TestTrackVisitor_EmailOnUpdateIdentifies(t *testing.T) {
	f := newFixture(t)

	f.trackVisitor(t, "v1", "/home")
	v, err := f.identity.TrackVisitor(context.Background(), TrackVisitorCommand{VisitorID: "v1", Page: "/jobs", Email: "Ada@Acme.io"})

	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeIdentified, v.Type)
	assert.Equal(t, "ada@acme.io", v.Email)
}

func TestTrackVisitor_ValidationRejectsBeforeStore(t *testing.T) {
	f := newFixture(t)

	_, err := f.identity.TrackVisitor(context.Background(), TrackVisitorCommand{Page: "/home"})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "visitorId is required")
	assert.Zero(t, f.enrichment.calls)

	page, err := f.queries.ListVisitors(context.Background(), ListVisitorsQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestEscalateToLead_ScoreAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.trackVisitor(t, "v1", "/home")
	for i := 0; i < 2; i++ {
		_, err := f.activity.TrackFormSubmission(ctx, TrackFormCommand{VisitorID: "v1", FormType: "contact", Page: "/home", Email: "a@b.com"})
		require.NoError(t, err)
	}

	v, err := f.store.Visitors().GetByVisitorID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 20, v.LeadScore)
}

func TestEscalateToLead_CreatesUnknownVisitor(t *testing.T) {
	f := newFixture(t)

	v, err := f.identity.EscalateToLead(context.Background(), "fresh", entities.ContactFields{Email: "x@y.io"})

	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeLead, v.Type)
	assert.Equal(t, 10, v.LeadScore)
	assert.Zero(t, v.TotalVisits)
	assert.Zero(t, v.TotalPageViews)
}

func TestTrackVisitor_AfterFormKeepsFirstSightAttribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.activity.TrackFormSubmission(ctx, TrackFormCommand{VisitorID: "v9", FormType: "contact", Page: "/contact", Email: "a@b.com"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	v, err := f.identity.TrackVisitor(ctx, TrackVisitorCommand{
		VisitorID: "v9", Page: "/home", IPAddress: "203.0.113.7", UserAgent: testUA,
		Referrer: "https://google.com", UTMSource: "ads",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://google.com", v.Referrer)
	assert.Equal(t, "ads", v.UTMSource)
	assert.Equal(t, 1, v.TotalVisits)
	assert.Equal(t, 1, v.TotalPageViews)
	assert.Equal(t, "Nigeria", v.Country)
	assert.Equal(t, "Lagos", v.City)
	assert.Equal(t, entities.VisitorTypeLead, v.Type)
	assert.Equal(t, entities.VisitorStatusConverted, v.Status)
	assert.Equal(t, 10, v.LeadScore)

	v, err = f.identity.TrackVisitor(ctx, TrackVisitorCommand{VisitorID: "v9", Page: "/jobs", Referrer: "https://bing.com", UTMSource: "bing"})
	require.NoError(t, err)
	assert.Equal(t, "https://google.com", v.Referrer)
	assert.Equal(t, "ads", v.UTMSource)
	assert.Equal(t, 2, v.TotalVisits)

	report, err := f.analytics.Aggregate(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalVisitors)
	assert.Zero(t, report.NewVisitors)
	assert.Equal(t, 1, report.ReturningVisitors)
}

func TestFormWithoutEmailDoesNotEscalate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.trackVisitor(t, "v1", "/home")
	_, err := f.activity.TrackFormSubmission(ctx, TrackFormCommand{VisitorID: "v1", FormType: "newsletter", Page: "/blog", Name: "Ada"})
	require.NoError(t, err)

	v, err := f.store.Visitors().GetByVisitorID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeAnonymous, v.Type)
	assert.Zero(t, v.LeadScore)
}

func TestFormWithBlankEmailDoesNotEscalate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.trackVisitor(t, "v1", "/home")
	form, err := f.activity.TrackFormSubmission(ctx, TrackFormCommand{
		VisitorID: "v1", FormType: "contact", Page: "/contact", Email: "   ", Name: "  Ada ",
	})
	require.NoError(t, err)
	assert.Empty(t, form.Email)
	assert.Equal(t, "Ada", form.Name)
	assert.False(t, form.IsLead())

	v, err := f.store.Visitors().GetByVisitorID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeAnonymous, v.Type)
	assert.Equal(t, entities.VisitorStatusActive, v.Status)
	assert.Empty(t, v.Email)
	assert.Zero(t, v.LeadScore)

	report, err := f.analytics.Aggregate(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.FormSubmissions)
	assert.Zero(t, report.LeadsGenerated)
}

func TestFormWithoutPriorVisitCreatesLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.activity.TrackFormSubmission(ctx, TrackFormCommand{VisitorID: "v9", FormType: "contact", Page: "/contact", Email: " A@B.com "})
	require.NoError(t, err)

	v, err := f.store.Visitors().GetByVisitorID(ctx, "v9")
	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeLead, v.Type)
	assert.Equal(t, "a@b.com", v.Email)
	assert.Zero(t, v.TotalVisits)
	assert.Empty(t, v.Referrer)

	report, err := f.analytics.Aggregate(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewVisitors)
	assert.Equal(t, 1, report.LeadsGenerated)
}

func TestTrackVisitor_EnrichmentFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.enrichment.err = apperrors.NewEnrichmentUnavailableError("geo database missing", nil)
	f.enrichment.facts = entities.EnrichmentFacts{Device: "mobile"}

	v := f.trackVisitor(t, "v1", "/home")

	assert.Equal(t, "mobile", v.Device)
	assert.Empty(t, v.Country)
}

func TestTrackVisitor_EnrichmentTimeoutDegrades(t *testing.T) {
	f := newFixture(t)
	f.enrichment.block = true

	v := f.trackVisitor(t, "v1", "/home")

	assert.Empty(t, v.Country)
	assert.Empty(t, v.Device)
	assert.Equal(t, 1, v.TotalVisits)
}

func TestSetVisitorStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trackVisitor(t, "v1", "/home")

	f.clock.Advance(30 * time.Minute)
	require.NoError(t, f.identity.SetVisitorStatus(ctx, "v1", entities.VisitorStatusLeft))
	v, err := f.store.Visitors().GetByVisitorID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, entities.VisitorStatusLeft, v.Status)
	assert.True(t, v.UpdatedAt.Equal(base.Add(30*time.Minute)), "stamped from the service clock")
	assert.True(t, v.LastVisit.Equal(base))

	err = f.identity.SetVisitorStatus(ctx, "v1", "GONE")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = f.identity.SetVisitorStatus(ctx, "ghost", entities.VisitorStatusLeft)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestGetVisitor_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.queries.GetVisitor(context.Background(), "ghost")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestGetVisitor_RecentActivityIsBounded(t *testing.T) {
	f := newFixture(t)
	f.queries.opts.RecentLimit = 3
	ctx := context.Background()

	f.trackVisitor(t, "v1", "/home")
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Second)
		_, err := f.activity.TrackPageView(ctx, TrackPageViewCommand{VisitorID: "v1", URL: "https://x.io/p"})
		require.NoError(t, err)
		_, err = f.activity.TrackEvent(ctx, TrackEventCommand{VisitorID: "v1", EventType: "click", Page: "/p"})
		require.NoError(t, err)
	}

	detail, err := f.queries.GetVisitor(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, detail.PageViews, 3)
	assert.Len(t, detail.Events, 3)
	assert.Empty(t, detail.Sessions)
	assert.True(t, detail.PageViews[0].CreatedAt.After(detail.PageViews[2].CreatedAt), "newest first")
}

func TestListVisitors_PagingAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.clock.Advance(time.Second)
		f.trackVisitor(t, id, "/home")
	}
	_, err := f.identity.TrackVisitor(ctx, TrackVisitorCommand{VisitorID: "f", Page: "/home", Email: "hire@acme.io"})
	require.NoError(t, err)

	page, err := f.queries.ListVisitors(ctx, ListVisitorsQuery{Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Visitors, 2)

	page, err = f.queries.ListVisitors(ctx, ListVisitorsQuery{Q: "acme"})
	require.NoError(t, err)
	require.Len(t, page.Visitors, 1)
	assert.Equal(t, "f", page.Visitors[0].VisitorID)

	page, err = f.queries.ListVisitors(ctx, ListVisitorsQuery{Type: entities.VisitorTypeIdentified, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Limit)
	assert.Equal(t, 1, page.Total)

	_, err = f.queries.ListVisitors(ctx, ListVisitorsQuery{Type: "ROBOT"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

type stubSearch struct {
	ids     []string
	indexed []string
}

func (s *stubSearch) Index(ctx context.Context, visitor *entities.Visitor) error {
	s.indexed = append(s.indexed, visitor.VisitorID)
	return nil
}

func (s *stubSearch) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return s.ids, nil
}

func TestListVisitors_UsesSearchIndex(t *testing.T) {
	f := newFixture(t)
	search := &stubSearch{}
	f.identity.SetSearch(search)
	f.queries.SetSearch(search)
	ctx := context.Background()

	f.trackVisitor(t, "a", "/home")
	f.trackVisitor(t, "b", "/home")
	assert.Equal(t, []string{"a", "b"}, search.indexed)

	search.ids = []string{"b"}
	page, err := f.queries.ListVisitors(ctx, ListVisitorsQuery{Q: "lagos"})
	require.NoError(t, err)
	require.Len(t, page.Visitors, 1)
	assert.Equal(t, "b", page.Visitors[0].VisitorID)

	search.ids = nil
	page, err = f.queries.ListVisitors(ctx, ListVisitorsQuery{Q: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, page.Visitors)
}
