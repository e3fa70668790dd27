package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
)

type sessionRepo struct {
	s *Store
}

func cloneSession(s *entities.VisitorSession) *entities.VisitorSession {
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	if s.Duration != nil {
		d := *s.Duration
		c.Duration = &d
	}
	return &c
}

func (r *sessionRepo) Upsert(
	ctx context.Context,
	sessionID string,
	create repositories.CreateFunc[entities.VisitorSession],
	update repositories.UpdateFunc[entities.VisitorSession],
) (*entities.VisitorSession, bool, error) {
	return upsertKeyed(ctx, r.s, "session", sessionID, r.s.sessions, cloneSession, create, update)
}

func (r *sessionRepo) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.VisitorSession, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	result := []*entities.VisitorSession{}
	for _, s := range r.s.sessions {
		if s.VisitorID == visitorID {
			result = append(result, cloneSession(s))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	return paginate(result, limit, 0), nil
}

func (r *sessionRepo) ListStartedBetween(ctx context.Context, start, end time.Time) ([]*entities.VisitorSession, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	result := []*entities.VisitorSession{}
	for _, s := range r.s.sessions {
		if inRange(s.StartTime, start, end) {
			result = append(result, cloneSession(s))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}
