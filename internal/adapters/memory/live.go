package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

type liveRepo struct {
	s *Store
}

func cloneLive(lv *entities.LiveVisitor) *entities.LiveVisitor {
	c := *lv
	return &c
}

func (r *liveRepo) Upsert(
	ctx context.Context,
	visitorID string,
	create repositories.CreateFunc[entities.LiveVisitor],
	update repositories.UpdateFunc[entities.LiveVisitor],
) (*entities.LiveVisitor, bool, error) {
	return upsertKeyed(ctx, r.s, "live", visitorID, r.s.live, cloneLive, create, update)
}

func (r *liveRepo) Get(ctx context.Context, visitorID string) (*entities.LiveVisitor, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	lv, ok := r.s.live[visitorID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("live visitor %s not found", visitorID))
	}
	return cloneLive(lv), nil
}

func (r *liveRepo) ListActiveSince(ctx context.Context, since time.Time) ([]*entities.LiveVisitor, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	result := []*entities.LiveVisitor{}
	for _, lv := range r.s.live {
		if lv.LastActivityAt.After(since) {
			result = append(result, cloneLive(lv))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastActivityAt.Equal(result[j].LastActivityAt) {
			return result[i].LastActivityAt.After(result[j].LastActivityAt)
		}
		return result[i].VisitorID < result[j].VisitorID
	})
	return result, nil
}

func (r *liveRepo) ListLastActiveBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := []string{}
	for id, lv := range r.s.live {
		if !lv.LastActivityAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *liveRepo) MarkInactiveIf(ctx context.Context, visitorID string, cond repositories.Predicate[entities.LiveVisitor]) (bool, error) {
	unlock, err := r.s.lockKey(ctx, "live", visitorID)
	if err != nil {
		return false, err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lv, ok := r.s.live[visitorID]
	if !ok || !lv.IsActive || !cond(cloneLive(lv)) {
		return false, nil
	}
	lv.IsActive = false
	return true, nil
}

func (r *liveRepo) DeleteIf(ctx context.Context, visitorID string, cond repositories.Predicate[entities.LiveVisitor]) (bool, error) {
	unlock, err := r.s.lockKey(ctx, "live", visitorID)
	if err != nil {
		return false, err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lv, ok := r.s.live[visitorID]
	if !ok || !cond(cloneLive(lv)) {
		return false, nil
	}
	delete(r.s.live, visitorID)
	return true, nil
}
