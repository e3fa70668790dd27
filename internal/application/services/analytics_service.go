package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
)

const (
	// TopN caps every ranked list in a report.
	TopN = 10

	// DefaultAnalyticsWindow applies when the caller omits the start of the range.
	DefaultAnalyticsWindow = 30 * 24 * time.Hour

	analyticsCachePrefix = "analytics:"
)

// AnalyticsService computes windowed statistics over the visitor store.
type AnalyticsService struct {
	visitors  repositories.VisitorRepository
	sessions  repositories.SessionRepository
	pageViews repositories.PageViewRepository
	forms     repositories.FormSubmissionRepository
	cache     providers.CacheProvider
	cacheTTL  int
	opts      Options
	metrics   *observability.Metrics
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	visitors repositories.VisitorRepository,
	sessions repositories.SessionRepository,
	pageViews repositories.PageViewRepository,
	forms repositories.FormSubmissionRepository,
	opts Options,
) *AnalyticsService {
	return &AnalyticsService{
		visitors:  visitors,
		sessions:  sessions,
		pageViews: pageViews,
		forms:     forms,
		opts:      opts.withDefaults(),
	}
}

// SetCache enables report caching for ttlSeconds
func (s *AnalyticsService) SetCache(cache providers.CacheProvider, ttlSeconds int) {
	s.cache = cache
	s.cacheTTL = ttlSeconds
}

// SetMetrics sets the metrics recorder
func (s *AnalyticsService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Aggregate builds the report for [start, end]. A zero end means now and a zero
// start means DefaultAnalyticsWindow before end. An inverted range yields an empty report.
func (s *AnalyticsService) Aggregate(ctx context.Context, start, end time.Time) (*entities.AnalyticsReport, error) {
	now := s.opts.now()
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.Add(-DefaultAnalyticsWindow)
	}
	start, end = start.UTC(), end.UTC()

	if end.Before(start) {
		return emptyReport(start, end, now), nil
	}

	key := fmt.Sprintf("%s%d:%d", analyticsCachePrefix, start.UnixMilli(), end.UnixMilli())
	if report := s.cached(ctx, key); report != nil {
		return report, nil
	}

	var (
		visitors  []*entities.Visitor
		sessions  []*entities.VisitorSession
		pageViews []*entities.PageView
		forms     []*entities.FormSubmission
	)

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(storeCtx)
	g.Go(func() (err error) {
		visitors, err = s.visitors.ListFirstSeenBetween(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		sessions, err = s.sessions.ListStartedBetween(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		pageViews, err = s.pageViews.ListBetween(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		forms, err = s.forms.ListBetween(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := buildReport(start, end, now, visitors, sessions, pageViews, forms)
	s.store(ctx, key, report)
	return report, nil
}

func buildReport(
	start, end, now time.Time,
	visitors []*entities.Visitor,
	sessions []*entities.VisitorSession,
	pageViews []*entities.PageView,
	forms []*entities.FormSubmission,
) *entities.AnalyticsReport {
	report := emptyReport(start, end, now)

	report.TotalVisitors = len(visitors)
	countries := make([]string, 0, len(visitors))
	devices := make([]string, 0, len(visitors))
	for _, v := range visitors {
		// Reflects visit counts at query time, not at the end of the window.
		// Visitors known only from a form have no visits yet and count as new.
		if v.TotalVisits <= 1 {
			report.NewVisitors++
		}
		countries = append(countries, v.Country)
		devices = append(devices, v.Device)
	}
	report.ReturningVisitors = report.TotalVisitors - report.NewVisitors
	report.TopCountries = rankTop(countries, TopN)
	report.TopDevices = rankTop(devices, TopN)

	report.TotalPageViews = len(pageViews)
	paths := make([]string, len(pageViews))
	for i, pv := range pageViews {
		paths[i] = pv.Path
	}
	report.TopPages = rankTop(paths, TopN)

	var total, closed int
	for _, session := range sessions {
		if session.Duration == nil {
			continue
		}
		total += *session.Duration
		closed++
	}
	if closed > 0 {
		report.AvgTimeOnSite = float64(total) / float64(closed)
	}

	report.FormSubmissions = len(forms)
	for _, f := range forms {
		if f.IsLead() {
			report.LeadsGenerated++
		}
	}
	return report
}

func emptyReport(start, end, now time.Time) *entities.AnalyticsReport {
	return &entities.AnalyticsReport{
		StartTime:    start,
		EndTime:      end,
		TopPages:     []entities.RankedCount{},
		TopCountries: []entities.RankedCount{},
		TopDevices:   []entities.RankedCount{},
		GeneratedAt:  now,
	}
}

// rankTop counts non-empty values and returns the n most frequent.
// Ties keep first-seen order.
func rankTop(values []string, n int) []entities.RankedCount {
	index := make(map[string]int)
	ranked := make([]entities.RankedCount, 0)
	for _, value := range values {
		if value == "" {
			continue
		}
		if i, ok := index[value]; ok {
			ranked[i].Count++
			continue
		}
		index[value] = len(ranked)
		ranked = append(ranked, entities.RankedCount{Value: value, Count: 1})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func (s *AnalyticsService) cached(ctx context.Context, key string) *entities.AnalyticsReport {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("analytics cache read failed")
		return nil
	}
	if data == nil {
		observability.RecordCacheMiss(ctx, s.metrics, analyticsCachePrefix)
		return nil
	}

	var report entities.AnalyticsReport
	if err := json.Unmarshal(data, &report); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("discarding corrupt analytics cache entry")
		return nil
	}
	observability.RecordCacheHit(ctx, s.metrics, analyticsCachePrefix)
	return &report
}

func (s *AnalyticsService) store(ctx context.Context, key string, report *entities.AnalyticsReport) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("analytics cache write failed")
	}
}
