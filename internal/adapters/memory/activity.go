package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// Activity slices are kept in insertion order. Range queries sort by creation
// time and keep insertion order between equal timestamps.

type pageViewRepo struct {
	s *Store
}

func (r *pageViewRepo) Create(ctx context.Context, pv *entities.PageView) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	c := *pv
	r.s.mu.Lock()
	r.s.pageViews = append(r.s.pageViews, &c)
	r.s.mu.Unlock()
	return nil
}

func (r *pageViewRepo) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.PageView, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return newestFirst(r.s.pageViews, limit, func(pv *entities.PageView) bool { return pv.VisitorID == visitorID }), nil
}

func (r *pageViewRepo) ListBetween(ctx context.Context, start, end time.Time) ([]*entities.PageView, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return oldestFirst(r.s.pageViews,
		func(pv *entities.PageView) bool { return inRange(pv.CreatedAt, start, end) },
		func(pv *entities.PageView) time.Time { return pv.CreatedAt },
	), nil
}

type eventRepo struct {
	s *Store
}

func (r *eventRepo) Create(ctx context.Context, evt *entities.VisitorEvent) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	c := *evt
	r.s.mu.Lock()
	r.s.events = append(r.s.events, &c)
	r.s.mu.Unlock()
	return nil
}

func (r *eventRepo) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.VisitorEvent, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return newestFirst(r.s.events, limit, func(e *entities.VisitorEvent) bool { return e.VisitorID == visitorID }), nil
}

type formRepo struct {
	s *Store
}

func (r *formRepo) Create(ctx context.Context, form *entities.FormSubmission) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	c := *form
	r.s.mu.Lock()
	r.s.forms = append(r.s.forms, &c)
	r.s.mu.Unlock()
	return nil
}

func (r *formRepo) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.FormSubmission, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return newestFirst(r.s.forms, limit, func(f *entities.FormSubmission) bool { return f.VisitorID == visitorID }), nil
}

func (r *formRepo) ListBetween(ctx context.Context, start, end time.Time) ([]*entities.FormSubmission, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return oldestFirst(r.s.forms,
		func(f *entities.FormSubmission) bool { return inRange(f.CreatedAt, start, end) },
		func(f *entities.FormSubmission) time.Time { return f.CreatedAt },
	), nil
}

func newestFirst[T any](items []*T, limit int, keep func(*T) bool) []*T {
	result := []*T{}
	for i := len(items) - 1; i >= 0; i-- {
		if !keep(items[i]) {
			continue
		}
		c := *items[i]
		result = append(result, &c)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

func oldestFirst[T any](items []*T, keep func(*T) bool, createdAt func(*T) time.Time) []*T {
	result := []*T{}
	for _, item := range items {
		if keep(item) {
			c := *item
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return createdAt(result[i]).Before(createdAt(result[j]))
	})
	return result
}
