package memory

import (
	"context"
	"sync"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

// Store is an in-process implementation of every visitor store port.
// Records are copied on the way in and out so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	visitors  map[string]*entities.Visitor
	sessions  map[string]*entities.VisitorSession
	live      map[string]*entities.LiveVisitor
	pageViews []*entities.PageView
	events    []*entities.VisitorEvent
	forms     []*entities.FormSubmission

	locks *keyedLocker
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		visitors: make(map[string]*entities.Visitor),
		sessions: make(map[string]*entities.VisitorSession),
		live:     make(map[string]*entities.LiveVisitor),
		locks:    newKeyedLocker(),
	}
}

// Visitors returns the visitor repository view of the store
func (s *Store) Visitors() repositories.VisitorRepository { return &visitorRepo{s} }

// Sessions returns the session repository view of the store
func (s *Store) Sessions() repositories.SessionRepository { return &sessionRepo{s} }

// PageViews returns the page view repository view of the store
func (s *Store) PageViews() repositories.PageViewRepository { return &pageViewRepo{s} }

// Events returns the visitor event repository view of the store
func (s *Store) Events() repositories.VisitorEventRepository { return &eventRepo{s} }

// Forms returns the form submission repository view of the store
func (s *Store) Forms() repositories.FormSubmissionRepository { return &formRepo{s} }

// LiveVisitors returns the live presence register view of the store
func (s *Store) LiveVisitors() repositories.LiveVisitorRepository { return &liveRepo{s} }

// upsertKeyed holds the key lock for the whole read-modify-write so
// concurrent callers for one key observe each other's writes.
func upsertKeyed[T any](
	ctx context.Context,
	s *Store,
	namespace, key string,
	table map[string]*T,
	clone func(*T) *T,
	create repositories.CreateFunc[T],
	update repositories.UpdateFunc[T],
) (*T, bool, error) {
	unlock, err := s.lockKey(ctx, namespace, key)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	s.mu.RLock()
	existing, ok := table[key]
	s.mu.RUnlock()

	if !ok {
		record, err := create()
		if err != nil {
			return nil, false, err
		}

		s.mu.Lock()
		table[key] = clone(record)
		s.mu.Unlock()
		return record, true, nil
	}

	working := clone(existing)
	if err := update(working); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	table[key] = clone(working)
	s.mu.Unlock()
	return working, false, nil
}

func (s *Store) lockKey(ctx context.Context, namespace, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreError("store call cancelled", err)
	}

	unlock, err := s.locks.Lock(ctx, namespace+":"+key)
	if err != nil {
		return nil, apperrors.NewStoreError("timed out waiting for "+namespace+" "+key, err)
	}
	return unlock, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreError("store call cancelled", err)
	}
	return nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset >= len(items) {
		return []*T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
