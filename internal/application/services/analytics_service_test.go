package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

type fakeCache struct {
	data map[string][]byte
	gets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets++
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	c.data = map[string][]byte{}
	return nil
}

func TestAggregate_TopPagesStableOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paths := []string{"/a", "/b", "/a", "/b", "/c", "/a", "/b", "/c", "/a", "/b", "/c", "/a", "/b"}
	for _, p := range paths {
		_, err := f.activity.TrackPageView(ctx, TrackPageViewCommand{VisitorID: "v1", URL: "https://acme.io" + p})
		require.NoError(t, err)
	}

	report, err := f.analytics.Aggregate(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 13, report.TotalPageViews)
	assert.Equal(t, []entities.RankedCount{
		{Value: "/a", Count: 5},
		{Value: "/b", Count: 5},
		{Value: "/c", Count: 3},
	}, report.TopPages)
}

func TestAggregate_Totals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.trackVisitor(t, "v1", "/home")
	f.trackVisitor(t, "v2", "/home")
	f.trackVisitor(t, "v2", "/jobs")
	f.enrichment.facts = entities.EnrichmentFacts{Country: "Ghana", Device: "mobile"}
	f.trackVisitor(t, "v3", "/home")

	end := base.Add(2 * time.Minute)
	_, err := f.sessions.TrackSession(ctx, TrackSessionCommand{VisitorID: "v1", SessionID: "s1", EntryPage: "/home", EndTime: &end})
	require.NoError(t, err)
	_, err = f.sessions.TrackSession(ctx, TrackSessionCommand{VisitorID: "v2", SessionID: "s2", EntryPage: "/home"})
	require.NoError(t, err)

	_, err = f.activity.TrackFormSubmission(ctx, TrackFormCommand{VisitorID: "v1", FormType: "contact", Page: "/", Email: "a@b.com"})
	require.NoError(t, err)
	_, err = f.activity.TrackFormSubmission(ctx, TrackFormCommand{VisitorID: "v2", FormType: "newsletter", Page: "/"})
	require.NoError(t, err)

	report, err := f.analytics.Aggregate(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalVisitors)
	assert.Equal(t, 2, report.NewVisitors)
	assert.Equal(t, 1, report.ReturningVisitors)
	assert.Equal(t, 120.0, report.AvgTimeOnSite, "open sessions are ignored")
	assert.Equal(t, 2, report.FormSubmissions)
	assert.Equal(t, 1, report.LeadsGenerated)
	assert.Equal(t, []entities.RankedCount{{Value: "Nigeria", Count: 2}, {Value: "Ghana", Count: 1}}, report.TopCountries)
	assert.Equal(t, []entities.RankedCount{{Value: "desktop", Count: 2}, {Value: "mobile", Count: 1}}, report.TopDevices)
	assert.True(t, report.GeneratedAt.Equal(base))
}

func TestAggregate_EmptyAndInvertedRanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trackVisitor(t, "v1", "/home")

	report, err := f.analytics.Aggregate(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.TotalVisitors)
	assert.Zero(t, report.AvgTimeOnSite)
	assert.NotNil(t, report.TopPages)
	assert.Empty(t, report.TopPages)

	report, err = f.analytics.Aggregate(ctx, base.Add(time.Hour), base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.TotalVisitors)
	assert.Empty(t, report.TopCountries)
}

func TestAggregate_BoundsAreInclusive(t *testing.T) {
	f := newFixture(t)
	f.trackVisitor(t, "v1", "/home")

	report, err := f.analytics.Aggregate(context.Background(), base, base)

	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalVisitors)
}

func TestAggregate_ServesFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newFakeCache()
	f.analytics.SetCache(cache, 60)

	f.trackVisitor(t, "v1", "/home")
	start, end := base.Add(-time.Hour), base.Add(time.Hour)

	first, err := f.analytics.Aggregate(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalVisitors)
	assert.Len(t, cache.data, 1)

	f.trackVisitor(t, "v2", "/home")
	second, err := f.analytics.Aggregate(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalVisitors, "cached report is reused within its ttl")

	require.NoError(t, cache.DeletePattern(ctx, "analytics:*"))
	third, err := f.analytics.Aggregate(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, third.TotalVisitors)
}

func TestRankTop_CapsAndSkipsEmpty(t *testing.T) {
	values := []string{"", "x", "y", "x", ""}
	for i := 0; i < 20; i++ {
		values = append(values, string(rune('a'+i)))
	}

	ranked := rankTop(values, TopN)

	require.Len(t, ranked, TopN)
	assert.Equal(t, entities.RankedCount{Value: "x", Count: 2}, ranked[0])
	assert.Equal(t, "y", ranked[1].Value)
	assert.Equal(t, "a", ranked[2].Value)
}
