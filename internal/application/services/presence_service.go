package services

import (
	"context"
	"errors"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/application/loaders"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

// HeartbeatCommand refreshes a visitor's live presence.
type HeartbeatCommand struct {
	VisitorID   string `json:"visitorId" validate:"required,max=255"`
	CurrentPage string `json:"currentPage" validate:"required,max=2048"`
	// IsActive defaults to true when omitted.
	IsActive   *bool  `json:"isActive,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty" validate:"max=64"`
	UserAgent  string `json:"userAgent,omitempty"`
	PageTitle  string `json:"pageTitle,omitempty"`
	Email      string `json:"email,omitempty" validate:"max=320"`
	Name       string `json:"name,omitempty"`
	TimeOnSite *int   `json:"timeOnSite,omitempty" validate:"omitempty,min=0"`
	PageViews  *int   `json:"pageViews,omitempty" validate:"omitempty,min=0"`
}

// LiveVisitorView is a live record joined with the durable visitor classification.
type LiveVisitorView struct {
	*entities.LiveVisitor
	VisitorType entities.VisitorType `json:"visitor_type,omitempty"`
	LeadScore   int                  `json:"lead_score"`
}

// ReapResult summarizes one reaper pass.
type ReapResult struct {
	MarkedIdle int `json:"marked_idle"`
	Expired    int `json:"expired"`
	Failed     int `json:"failed"`
}

// PresenceService is the live presence register: heartbeats, live listing and reaping.
type PresenceService struct {
	live     repositories.LiveVisitorRepository
	visitors repositories.VisitorRepository
	enricher enricher
	eventBus providers.EventBus
	opts     Options
	metrics  *observability.Metrics
}

// NewPresenceService creates a new presence service. visitors and enrichment may be nil.
func NewPresenceService(
	live repositories.LiveVisitorRepository,
	visitors repositories.VisitorRepository,
	enrichment providers.EnrichmentProvider,
	opts Options,
) *PresenceService {
	opts = opts.withDefaults()
	return &PresenceService{
		live:     live,
		visitors: visitors,
		enricher: enricher{provider: enrichment, timeout: opts.EnrichmentTimeout},
		opts:     opts,
	}
}

// SetEventBus enables presence change notifications
func (s *PresenceService) SetEventBus(eventBus providers.EventBus) {
	s.eventBus = eventBus
}

// SetMetrics sets the metrics recorder
func (s *PresenceService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Heartbeat creates or refreshes the live record for a visitor. Omitted counters
// advance by a fixed step: HeartbeatStep seconds on site and one page view.
func (s *PresenceService) Heartbeat(ctx context.Context, cmd HeartbeatCommand) (*entities.LiveVisitor, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	active := true
	if cmd.IsActive != nil {
		active = *cmd.IsActive
	}
	step := int(s.opts.HeartbeatStep / time.Second)

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	// Enrichment only feeds the initial snapshot, so skip it for known visitors.
	var facts entities.EnrichmentFacts
	if _, err := s.live.Get(storeCtx, cmd.VisitorID); err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		facts = s.enricher.enrich(ctx, cmd.IPAddress, cmd.UserAgent)
	}

	now := s.opts.now()
	lv, created, err := s.live.Upsert(storeCtx, cmd.VisitorID,
		func() (*entities.LiveVisitor, error) {
			lv := &entities.LiveVisitor{
				VisitorID:      cmd.VisitorID,
				CurrentPage:    cmd.CurrentPage,
				PageTitle:      cmd.PageTitle,
				IsActive:       active,
				LastActivityAt: now,
				TimeOnSite:     0,
				PageViews:      1,
				Email:          cmd.Email,
				Name:           cmd.Name,
				IPAddress:      cmd.IPAddress,
				Country:        facts.Country,
				City:           facts.City,
				Device:         facts.Device,
				Browser:        facts.Browser,
				OS:             facts.OS,
				CreatedAt:      now,
			}
			if cmd.TimeOnSite != nil {
				lv.TimeOnSite = *cmd.TimeOnSite
			}
			if cmd.PageViews != nil {
				lv.PageViews = *cmd.PageViews
			}
			return lv, nil
		},
		func(lv *entities.LiveVisitor) error {
			lv.CurrentPage = cmd.CurrentPage
			lv.PageTitle = cmd.PageTitle
			lv.IsActive = active
			lv.Touch(now)

			if cmd.TimeOnSite != nil {
				lv.TimeOnSite = *cmd.TimeOnSite
			} else {
				lv.TimeOnSite += step
			}
			if cmd.PageViews != nil {
				lv.PageViews = *cmd.PageViews
			} else {
				lv.PageViews++
			}

			if cmd.Email != "" {
				lv.Email = cmd.Email
			}
			if cmd.Name != "" {
				lv.Name = cmd.Name
			}
			if cmd.IPAddress != "" {
				lv.IPAddress = cmd.IPAddress
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	observability.RecordHeartbeat(ctx, s.metrics, created)
	s.publish(ctx, entities.NewPresenceEvent(lv.VisitorID, entities.PresenceEventTypeUpdated, lv, now))
	return lv, nil
}

// ListLive returns active visitors seen within the live window, most recently active first.
func (s *PresenceService) ListLive(ctx context.Context) ([]*entities.LiveVisitor, error) {
	now := s.opts.now()

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	candidates, err := s.live.ListActiveSince(storeCtx, now.Add(-entities.LiveWindow))
	if err != nil {
		return nil, err
	}

	live := make([]*entities.LiveVisitor, 0, len(candidates))
	for _, lv := range candidates {
		if lv.IsActive && entities.EvaluatePresence(lv.LastActivityAt, now).Live {
			live = append(live, lv)
		}
	}
	return live, nil
}

// ListLiveDetailed is ListLive joined with each visitor's classification, loaded in one batch.
func (s *PresenceService) ListLiveDetailed(ctx context.Context) ([]LiveVisitorView, error) {
	live, err := s.ListLive(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]LiveVisitorView, len(live))
	for i, lv := range live {
		views[i] = LiveVisitorView{LiveVisitor: lv}
	}
	if s.visitors == nil || len(live) == 0 {
		return views, nil
	}

	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(s.visitors)
	}

	ids := make([]string, len(live))
	for i, lv := range live {
		ids[i] = lv.VisitorID
	}

	storeCtx, cancel := s.opts.storeContext(ctx)
	defer cancel()

	visitors, errs := l.VisitorLoader.LoadMany(storeCtx, ids)()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	for i, v := range visitors {
		if v != nil {
			views[i].VisitorType = v.Type
			views[i].LeadScore = v.LeadScore
		}
	}
	return views, nil
}

// Reap marks records idle after IdleAfter and deletes them after ExpireAfter.
// Each write re-checks staleness on the stored record, so a heartbeat that lands
// mid-sweep wins. A failure on one record is logged and the sweep continues.
func (s *PresenceService) Reap(ctx context.Context) (ReapResult, error) {
	var result ReapResult
	now := s.opts.now()
	logger := observability.LoggerFromContext(ctx)

	expired := func(lv *entities.LiveVisitor) bool {
		return entities.EvaluatePresence(lv.LastActivityAt, now).Expired
	}
	idle := func(lv *entities.LiveVisitor) bool {
		return !entities.EvaluatePresence(lv.LastActivityAt, now).Active
	}

	scanCtx, cancel := s.opts.storeContext(ctx)
	expiredIDs, err := s.live.ListLastActiveBefore(scanCtx, now.Add(-entities.ExpireAfter))
	cancel()
	if err != nil {
		return result, err
	}

	for _, id := range expiredIDs {
		writeCtx, cancel := s.opts.storeContext(ctx)
		deleted, err := s.live.DeleteIf(writeCtx, id, expired)
		cancel()
		if err != nil {
			result.Failed++
			logger.Warn().Err(err).Str("visitor_id", id).Msg("failed to delete expired live visitor")
			continue
		}
		if deleted {
			result.Expired++
			s.publish(ctx, entities.NewPresenceEvent(id, entities.PresenceEventTypeExpired, nil, now))
		}
	}

	scanCtx, cancel = s.opts.storeContext(ctx)
	idleIDs, err := s.live.ListLastActiveBefore(scanCtx, now.Add(-entities.IdleAfter))
	cancel()
	if err != nil {
		return result, err
	}

	for _, id := range idleIDs {
		writeCtx, cancel := s.opts.storeContext(ctx)
		changed, err := s.live.MarkInactiveIf(writeCtx, id, idle)
		cancel()
		if err != nil {
			result.Failed++
			logger.Warn().Err(err).Str("visitor_id", id).Msg("failed to mark live visitor idle")
			continue
		}
		if changed {
			result.MarkedIdle++
			s.publish(ctx, entities.NewPresenceEvent(id, entities.PresenceEventTypeIdle, nil, now))
		}
	}

	observability.RecordReaped(ctx, s.metrics, "idle", result.MarkedIdle)
	observability.RecordReaped(ctx, s.metrics, "expired", result.Expired)

	logger.Info().
		Int("marked_idle", result.MarkedIdle).
		Int("expired", result.Expired).
		Int("failed", result.Failed).
		Msg("presence reap complete")
	return result, nil
}

func (s *PresenceService) publish(ctx context.Context, event *entities.PresenceEvent) {
	if s.eventBus == nil {
		return
	}
	for _, channel := range []string{providers.EventChannelPresenceUpdates, providers.GetVisitorChannel(event.VisitorID)} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("channel", channel).
				Str("visitor_id", event.VisitorID).
				Msg("failed to publish presence event")
		}
	}
}
