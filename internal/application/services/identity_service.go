package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

// TrackVisitorCommand is one page load reported by a visitor's browser.
type TrackVisitorCommand struct {
	VisitorID        string `json:"visitorId" validate:"required,max=255"`
	Page             string `json:"page" validate:"required,max=2048"`
	IPAddress        string `json:"ipAddress,omitempty" validate:"max=64"`
	UserAgent        string `json:"userAgent,omitempty"`
	ScreenResolution string `json:"screenResolution,omitempty" validate:"max=32"`

	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	UTMTerm     string `json:"utmTerm,omitempty"`
	UTMContent  string `json:"utmContent,omitempty"`

	Email    string `json:"email,omitempty" validate:"max=320"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

func (c TrackVisitorCommand) contact() entities.ContactFields {
	return entities.ContactFields{
		Email:    strings.TrimSpace(c.Email),
		Name:     strings.TrimSpace(c.Name),
		Phone:    strings.TrimSpace(c.Phone),
		Company:  strings.TrimSpace(c.Company),
		Position: strings.TrimSpace(c.Position),
	}
}

func (c TrackVisitorCommand) attribution() entities.Attribution {
	return entities.Attribution{
		Referrer:    c.Referrer,
		UTMSource:   c.UTMSource,
		UTMMedium:   c.UTMMedium,
		UTMCampaign: c.UTMCampaign,
		UTMTerm:     c.UTMTerm,
		UTMContent:  c.UTMContent,
	}
}

// IdentityService resolves visitor ids to durable Visitor records and escalates their classification.
type IdentityService struct {
	visitors repositories.VisitorRepository
	search   repositories.VisitorSearchRepository
	enricher enricher
	opts     Options
	metrics  *observability.Metrics
}

// NewIdentityService creates a new identity service. enrichment may be nil.
func NewIdentityService(
	visitors repositories.VisitorRepository,
	enrichment providers.EnrichmentProvider,
	opts Options,
) *IdentityService {
	opts = opts.withDefaults()
	return &IdentityService{
		visitors: visitors,
		enricher: enricher{provider: enrichment, timeout: opts.EnrichmentTimeout},
		opts:     opts,
	}
}

// SetSearch enables indexing of resolved visitors for free-text search
func (s *IdentityService) SetSearch(search repositories.VisitorSearchRepository) {
	s.search = search
}

// SetMetrics sets the metrics recorder
func (s *IdentityService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// TrackVisitor creates the visitor on first sight or updates it in place.
func (s *IdentityService) TrackVisitor(ctx context.Context, cmd TrackVisitorCommand) (*entities.Visitor, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	facts := s.enricher.enrich(ctx, cmd.IPAddress, cmd.UserAgent)
	contact := cmd.contact()
	now := s.opts.now()

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	start := s.opts.Clock.Now()
	visitor, created, err := s.visitors.Upsert(storeCtx, cmd.VisitorID,
		func() (*entities.Visitor, error) {
			v := &entities.Visitor{
				ID:               uuid.NewString(),
				VisitorID:        cmd.VisitorID,
				Type:             entities.VisitorTypeAnonymous,
				Status:           entities.VisitorStatusActive,
				IPAddress:        cmd.IPAddress,
				ScreenResolution: cmd.ScreenResolution,
				TotalVisits:      1,
				TotalPageViews:   1,
				PagesVisited:     []string{},
				FirstVisit:       now,
				LastVisit:        now,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			v.ApplyEnrichment(facts)
			v.SeedAttribution(cmd.attribution())
			v.MergeContact(contact)
			if !contact.IsEmpty() {
				v.Type = v.Type.Escalate(entities.VisitorTypeIdentified)
			}
			v.AppendPage(cmd.Page)
			return v, nil
		},
		func(v *entities.Visitor) error {
			if v.TotalVisits == 0 {
				// Created by a form before any page load.
				v.ApplyEnrichment(facts)
				v.SeedAttribution(cmd.attribution())
			}
			v.LastVisit = now
			v.UpdatedAt = now
			v.TotalVisits++
			v.TotalPageViews++
			if cmd.IPAddress != "" {
				v.IPAddress = cmd.IPAddress
			}
			if cmd.ScreenResolution != "" {
				v.ScreenResolution = cmd.ScreenResolution
			}
			v.RefreshEnrichment(facts)
			v.MergeContact(contact)
			if v.Email != "" {
				v.Type = v.Type.Escalate(entities.VisitorTypeIdentified)
			}
			if v.Status != entities.VisitorStatusConverted {
				v.Status = entities.VisitorStatusActive
			}
			v.AppendPage(cmd.Page)
			return nil
		},
	)
	observability.RecordStoreMetric(ctx, s.metrics, "visitor.upsert", s.opts.Clock.Since(start))
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("visitor_id", visitor.VisitorID).
		Bool("created", created).
		Str("type", string(visitor.Type)).
		Msg("visitor tracked")

	s.index(ctx, visitor)
	observability.RecordIngest(ctx, s.metrics, "visitor")
	return visitor, nil
}

// EscalateToLead merges contact fields, escalates the visitor to LEAD and adds to its lead score.
// A visitor that was never tracked is created directly as a lead with no visits recorded,
// so its first page load is still treated as first sight.
func (s *IdentityService) EscalateToLead(ctx context.Context, visitorID string, contact entities.ContactFields) (*entities.Visitor, error) {
	if strings.TrimSpace(visitorID) == "" {
		return nil, apperrors.NewValidationError("visitorId is required")
	}
	now := s.opts.now()

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	visitor, _, err := s.visitors.Upsert(storeCtx, visitorID,
		func() (*entities.Visitor, error) {
			v := &entities.Visitor{
				ID:           uuid.NewString(),
				VisitorID:    visitorID,
				Type:         entities.VisitorTypeAnonymous,
				Status:       entities.VisitorStatusActive,
				PagesVisited: []string{},
				FirstVisit:   now,
				LastVisit:    now,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			v.MergeContact(contact)
			v.PromoteToLead(LeadScoreIncrement)
			return v, nil
		},
		func(v *entities.Visitor) error {
			v.MergeContact(contact)
			v.PromoteToLead(LeadScoreIncrement)
			v.UpdatedAt = now
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("visitor_id", visitorID).
		Int("lead_score", visitor.LeadScore).
		Msg("visitor escalated to lead")

	s.index(ctx, visitor)
	return visitor, nil
}

// SetVisitorStatus sets the engagement status of an existing visitor
func (s *IdentityService) SetVisitorStatus(ctx context.Context, visitorID string, status entities.VisitorStatus) error {
	if strings.TrimSpace(visitorID) == "" {
		return apperrors.NewValidationError("visitorId is required")
	}
	if !status.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("invalid status %q", status))
	}

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	return s.visitors.UpdateStatus(storeCtx, visitorID, status, s.opts.now())
}

// index keeps the search index in step with the store. Failures are logged only.
func (s *IdentityService) index(ctx context.Context, visitor *entities.Visitor) {
	if s.search == nil {
		return
	}
	ctx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	if err := s.search.Index(ctx, visitor); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("visitor_id", visitor.VisitorID).
			Msg("failed to index visitor")
	}
}
