package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
)

// TrackSessionCommand opens or updates a visitor session.
type TrackSessionCommand struct {
	VisitorID string     `json:"visitorId" validate:"required,max=255"`
	SessionID string     `json:"sessionId" validate:"required,max=255"`
	IPAddress string     `json:"ipAddress,omitempty" validate:"max=64"`
	UserAgent string     `json:"userAgent,omitempty"`
	EntryPage string     `json:"entryPage" validate:"required,max=2048"`
	ExitPage  string     `json:"exitPage,omitempty" validate:"max=2048"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	IsActive  *bool      `json:"isActive,omitempty"`
}

// SessionService maintains visitor sessions keyed by session id.
type SessionService struct {
	sessions repositories.SessionRepository
	enricher enricher
	opts     Options
	metrics  *observability.Metrics
}

// NewSessionService creates a new session service. enrichment may be nil.
func NewSessionService(sessions repositories.SessionRepository, enrichment providers.EnrichmentProvider, opts Options) *SessionService {
	opts = opts.withDefaults()
	return &SessionService{
		sessions: sessions,
		enricher: enricher{provider: enrichment, timeout: opts.EnrichmentTimeout},
		opts:     opts,
	}
}

// SetMetrics sets the metrics recorder
func (s *SessionService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// TrackSession creates the session on first sight. Later calls count a page view,
// record the exit page and close the session when an end time is supplied.
func (s *SessionService) TrackSession(ctx context.Context, cmd TrackSessionCommand) (*entities.VisitorSession, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	facts := s.enricher.enrich(ctx, cmd.IPAddress, cmd.UserAgent)
	now := s.opts.now()

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	start := s.opts.Clock.Now()
	session, _, err := s.sessions.Upsert(storeCtx, cmd.SessionID,
		func() (*entities.VisitorSession, error) {
			session := &entities.VisitorSession{
				ID:        uuid.NewString(),
				SessionID: cmd.SessionID,
				VisitorID: cmd.VisitorID,
				EntryPage: cmd.EntryPage,
				ExitPage:  cmd.ExitPage,
				StartTime: now,
				IsActive:  true,
				Device:    facts.Device,
				Browser:   facts.Browser,
				OS:        facts.OS,
				IPAddress: cmd.IPAddress,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if cmd.IsActive != nil {
				session.IsActive = *cmd.IsActive
			}
			if cmd.EndTime != nil {
				session.Close(cmd.EndTime.UTC())
			}
			return session, nil
		},
		func(session *entities.VisitorSession) error {
			session.PageViews++
			if cmd.ExitPage != "" {
				session.ExitPage = cmd.ExitPage
			}
			if cmd.EndTime != nil {
				session.Close(cmd.EndTime.UTC())
			}
			if cmd.IsActive != nil {
				session.IsActive = *cmd.IsActive
			}
			session.UpdatedAt = now
			return nil
		},
	)
	observability.RecordStoreMetric(ctx, s.metrics, "session.upsert", s.opts.Clock.Since(start))
	if err != nil {
		return nil, err
	}

	observability.RecordIngest(ctx, s.metrics, "session")
	return session, nil
}
