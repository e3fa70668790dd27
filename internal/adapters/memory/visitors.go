package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

type visitorRepo struct {
	s *Store
}

func cloneVisitor(v *entities.Visitor) *entities.Visitor {
	c := *v
	if v.PagesVisited != nil {
		c.PagesVisited = append([]string(nil), v.PagesVisited...)
	}
	return &c
}

func (r *visitorRepo) Upsert(
	ctx context.Context,
	visitorID string,
	create repositories.CreateFunc[entities.Visitor],
	update repositories.UpdateFunc[entities.Visitor],
) (*entities.Visitor, bool, error) {
	return upsertKeyed(ctx, r.s, "visitor", visitorID, r.s.visitors, cloneVisitor, create, update)
}

func (r *visitorRepo) GetByVisitorID(ctx context.Context, visitorID string) (*entities.Visitor, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.visitors[visitorID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("visitor %s not found", visitorID))
	}
	return cloneVisitor(v), nil
}

func (r *visitorRepo) GetByVisitorIDs(ctx context.Context, visitorIDs []string) ([]*entities.Visitor, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*entities.Visitor, 0, len(visitorIDs))
	for _, id := range visitorIDs {
		if v, ok := r.s.visitors[id]; ok {
			result = append(result, cloneVisitor(v))
		}
	}
	return result, nil
}

func (r *visitorRepo) List(ctx context.Context, filter repositories.VisitorFilter) ([]*entities.Visitor, int, error) {
	if err := checkContext(ctx); err != nil {
		return nil, 0, err
	}

	var allowed map[string]struct{}
	if filter.VisitorIDs != nil {
		allowed = make(map[string]struct{}, len(filter.VisitorIDs))
		for _, id := range filter.VisitorIDs {
			allowed[id] = struct{}{}
		}
	}
	email := strings.ToLower(filter.Email)

	r.s.mu.RLock()
	matched := []*entities.Visitor{}
	for _, v := range r.s.visitors {
		if filter.Type != "" && v.Type != filter.Type {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if email != "" && !strings.Contains(strings.ToLower(v.Email), email) {
			continue
		}
		if filter.Country != "" && v.Country != filter.Country {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[v.VisitorID]; !ok {
				continue
			}
		}
		matched = append(matched, cloneVisitor(v))
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].LastVisit.Equal(matched[j].LastVisit) {
			return matched[i].LastVisit.After(matched[j].LastVisit)
		}
		return matched[i].ID < matched[j].ID
	})

	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *visitorRepo) UpdateStatus(ctx context.Context, visitorID string, status entities.VisitorStatus, updatedAt time.Time) error {
	unlock, err := r.s.lockKey(ctx, "visitor", visitorID)
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.visitors[visitorID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("visitor %s not found", visitorID))
	}
	v.Status = status
	v.UpdatedAt = updatedAt.UTC()
	return nil
}

func (r *visitorRepo) ListFirstSeenBetween(ctx context.Context, start, end time.Time) ([]*entities.Visitor, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	result := []*entities.Visitor{}
	for _, v := range r.s.visitors {
		if inRange(v.FirstVisit, start, end) {
			result = append(result, cloneVisitor(v))
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].FirstVisit.Equal(result[j].FirstVisit) {
			return result[i].FirstVisit.Before(result[j].FirstVisit)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// inRange is the inclusive [start, end] window used by every range query.
func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
