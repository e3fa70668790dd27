package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
)

// TrackPageViewCommand records one page view.
type TrackPageViewCommand struct {
	VisitorID   string `json:"visitorId" validate:"required,max=255"`
	URL         string `json:"url" validate:"required,max=4096"`
	Path        string `json:"path,omitempty" validate:"max=2048"`
	Title       string `json:"title,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	TimeOnPage  *int   `json:"timeOnPage,omitempty" validate:"omitempty,min=0"`
	ScrollDepth *int   `json:"scrollDepth,omitempty" validate:"omitempty,min=0,max=100"`
	Clicks      int    `json:"clicks,omitempty" validate:"min=0"`
}

// TrackEventCommand records one behavioral event.
type TrackEventCommand struct {
	VisitorID     string           `json:"visitorId" validate:"required,max=255"`
	EventType     string           `json:"eventType" validate:"required,max=100"`
	Page          string           `json:"page" validate:"required,max=2048"`
	EventCategory string           `json:"eventCategory,omitempty"`
	EventLabel    string           `json:"eventLabel,omitempty"`
	EventValue    *float64         `json:"eventValue,omitempty"`
	Element       string           `json:"element,omitempty"`
	Metadata      entities.JSONMap `json:"metadata,omitempty"`
}

// TrackFormCommand records one form submission.
type TrackFormCommand struct {
	VisitorID    string           `json:"visitorId" validate:"required,max=255"`
	FormType     string           `json:"formType" validate:"required,max=100"`
	Page         string           `json:"page" validate:"required,max=2048"`
	FormName     string           `json:"formName,omitempty"`
	Email        string           `json:"email,omitempty" validate:"max=320"`
	Name         string           `json:"name,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	Company      string           `json:"company,omitempty"`
	Message      string           `json:"message,omitempty"`
	CustomFields entities.JSONMap `json:"customFields,omitempty"`
}

// LeadEscalator converts a visitor into a lead.
type LeadEscalator interface {
	EscalateToLead(ctx context.Context, visitorID string, contact entities.ContactFields) (*entities.Visitor, error)
}

// ActivityService appends page views, events and form submissions.
type ActivityService struct {
	pageViews repositories.PageViewRepository
	events    repositories.VisitorEventRepository
	forms     repositories.FormSubmissionRepository
	leads     LeadEscalator
	opts      Options
	metrics   *observability.Metrics
}

// NewActivityService creates a new activity service
func NewActivityService(
	pageViews repositories.PageViewRepository,
	events repositories.VisitorEventRepository,
	forms repositories.FormSubmissionRepository,
	leads LeadEscalator,
	opts Options,
) *ActivityService {
	return &ActivityService{
		pageViews: pageViews,
		events:    events,
		forms:     forms,
		leads:     leads,
		opts:      opts.withDefaults(),
	}
}

// SetMetrics sets the metrics recorder
func (s *ActivityService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// TrackPageView appends a page view. The path is taken from the URL when omitted.
func (s *ActivityService) TrackPageView(ctx context.Context, cmd TrackPageViewCommand) (*entities.PageView, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	path := cmd.Path
	if path == "" {
		if u, err := url.Parse(cmd.URL); err == nil && u.Path != "" {
			path = u.Path
		} else {
			path = "/"
		}
	}

	pageView := &entities.PageView{
		ID:          uuid.NewString(),
		VisitorID:   cmd.VisitorID,
		URL:         cmd.URL,
		Path:        path,
		Title:       cmd.Title,
		Referrer:    cmd.Referrer,
		TimeOnPage:  cmd.TimeOnPage,
		ScrollDepth: cmd.ScrollDepth,
		Clicks:      cmd.Clicks,
		CreatedAt:   s.opts.now(),
	}

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	if err := s.pageViews.Create(storeCtx, pageView); err != nil {
		return nil, err
	}

	observability.RecordIngest(ctx, s.metrics, "pageview")
	return pageView, nil
}

// TrackEvent appends a behavioral event
func (s *ActivityService) TrackEvent(ctx context.Context, cmd TrackEventCommand) (*entities.VisitorEvent, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	event := &entities.VisitorEvent{
		ID:            uuid.NewString(),
		VisitorID:     cmd.VisitorID,
		EventType:     cmd.EventType,
		EventCategory: cmd.EventCategory,
		EventLabel:    cmd.EventLabel,
		EventValue:    cmd.EventValue,
		Page:          cmd.Page,
		Element:       cmd.Element,
		Metadata:      cmd.Metadata,
		CreatedAt:     s.opts.now(),
	}

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	if err := s.events.Create(storeCtx, event); err != nil {
		return nil, err
	}

	observability.RecordIngest(ctx, s.metrics, "event")
	return event, nil
}

// TrackFormSubmission appends a form submission. A submission carrying an email
// then converts its visitor to a lead.
func (s *ActivityService) TrackFormSubmission(ctx context.Context, cmd TrackFormCommand) (*entities.FormSubmission, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	submission := &entities.FormSubmission{
		ID:           uuid.NewString(),
		VisitorID:    cmd.VisitorID,
		FormType:     cmd.FormType,
		FormName:     cmd.FormName,
		Page:         cmd.Page,
		Email:        strings.TrimSpace(cmd.Email),
		Name:         strings.TrimSpace(cmd.Name),
		Phone:        strings.TrimSpace(cmd.Phone),
		Company:      strings.TrimSpace(cmd.Company),
		Message:      cmd.Message,
		CustomFields: cmd.CustomFields,
		CreatedAt:    s.opts.now(),
	}

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	if err := s.forms.Create(storeCtx, submission); err != nil {
		return nil, err
	}
	observability.RecordIngest(ctx, s.metrics, "form")

	if submission.IsLead() && s.leads != nil {
		if _, err := s.leads.EscalateToLead(ctx, submission.VisitorID, submission.Contact()); err != nil {
			return nil, err
		}
	}

	return submission, nil
}
