package services

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxSearchHits   = 250
)

// VisitorDetail is a visitor with its most recent activity.
type VisitorDetail struct {
	*entities.Visitor
	Sessions        []*entities.VisitorSession `json:"sessions"`
	PageViews       []*entities.PageView       `json:"page_views"`
	Events          []*entities.VisitorEvent   `json:"events"`
	FormSubmissions []*entities.FormSubmission `json:"form_submissions"`
}

// ListVisitorsQuery selects a page of visitors. Page is 1-based.
type ListVisitorsQuery struct {
	Page    int
	Limit   int
	Type    entities.VisitorType
	Status  entities.VisitorStatus
	Email   string
	Country string
	// Q is free text matched against contact and geo fields.
	Q string
}

// VisitorPage is one page of a visitor listing
type VisitorPage struct {
	Visitors []*entities.Visitor `json:"visitors"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	Limit    int                 `json:"limit"`
	Pages    int                 `json:"pages"`
}

// VisitorQueryService serves read-only visitor lookups.
type VisitorQueryService struct {
	visitors  repositories.VisitorRepository
	sessions  repositories.SessionRepository
	pageViews repositories.PageViewRepository
	events    repositories.VisitorEventRepository
	forms     repositories.FormSubmissionRepository
	search    repositories.VisitorSearchRepository
	opts      Options
}

// NewVisitorQueryService creates a new visitor query service
func NewVisitorQueryService(
	visitors repositories.VisitorRepository,
	sessions repositories.SessionRepository,
	pageViews repositories.PageViewRepository,
	events repositories.VisitorEventRepository,
	forms repositories.FormSubmissionRepository,
	opts Options,
) *VisitorQueryService {
	return &VisitorQueryService{
		visitors:  visitors,
		sessions:  sessions,
		pageViews: pageViews,
		events:    events,
		forms:     forms,
		opts:      opts.withDefaults(),
	}
}

// SetSearch enables free-text search through an external index
func (s *VisitorQueryService) SetSearch(search repositories.VisitorSearchRepository) {
	s.search = search
}

// GetVisitor returns a visitor with its RecentLimit most recent sessions, page views, events and forms
func (s *VisitorQueryService) GetVisitor(ctx context.Context, visitorID string) (*VisitorDetail, error) {
	if strings.TrimSpace(visitorID) == "" {
		return nil, apperrors.NewValidationError("visitorId is required")
	}

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	visitor, err := s.visitors.GetByVisitorID(storeCtx, visitorID)
	if err != nil {
		return nil, err
	}

	detail := &VisitorDetail{Visitor: visitor}
	limit := s.opts.RecentLimit

	g, gctx := errgroup.WithContext(storeCtx)
	g.Go(func() (err error) {
		detail.Sessions, err = s.sessions.ListByVisitor(gctx, visitorID, limit)
		return err
	})
	g.Go(func() (err error) {
		detail.PageViews, err = s.pageViews.ListByVisitor(gctx, visitorID, limit)
		return err
	})
	g.Go(func() (err error) {
		detail.Events, err = s.events.ListByVisitor(gctx, visitorID, limit)
		return err
	})
	g.Go(func() (err error) {
		detail.FormSubmissions, err = s.forms.ListByVisitor(gctx, visitorID, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return detail, nil
}

// ListVisitors returns one page of visitors, most recently seen first
func (s *VisitorQueryService) ListVisitors(ctx context.Context, q ListVisitorsQuery) (*VisitorPage, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, apperrors.NewValidationError("invalid type " + string(q.Type))
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status " + string(q.Status))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	filter := repositories.VisitorFilter{
		Type:    q.Type,
		Status:  q.Status,
		Email:   strings.TrimSpace(q.Email),
		Country: strings.TrimSpace(q.Country),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	if text := strings.TrimSpace(q.Q); text != "" {
		if s.search != nil {
			ids, err := s.search.Search(storeCtx, text, maxSearchHits)
			if err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Msg("visitor search failed, falling back to email filter")
				filter.Email = text
			} else {
				if ids == nil {
					ids = []string{}
				}
				filter.VisitorIDs = ids
			}
		} else if filter.Email == "" {
			filter.Email = text
		}
	}

	visitors, total, err := s.visitors.List(storeCtx, filter)
	if err != nil {
		return nil, err
	}

	return &VisitorPage{
		Visitors: visitors,
		Total:    total,
		Page:     page,
		Limit:    limit,
		Pages:    (total + limit - 1) / limit,
	}, nil
}
