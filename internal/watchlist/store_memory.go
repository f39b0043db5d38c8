package watchlist

import (
	"context"
	"sync"

	"listscreen/internal/domain"
)

// MemoryStore is an in-memory SnapshotStore for tests and single-process
// deployments. The current pointer swap happens under the write lock;
// previously returned snapshots are never touched again.
type MemoryStore struct {
	mu        sync.RWMutex
	byDate    map[domain.ListDate]*domain.WatchlistSnapshot
	current   *domain.WatchlistSnapshot
	published []domain.ListDate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byDate: make(map[domain.ListDate]*domain.WatchlistSnapshot)}
}

func (s *MemoryStore) Publish(_ context.Context, snap *domain.WatchlistSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.byDate[snap.ListDate]; !seen {
		s.published = append(s.published, snap.ListDate)
	}
	s.byDate[snap.ListDate] = snap
	s.current = snap
	return nil
}

func (s *MemoryStore) Current(_ context.Context) (*domain.WatchlistSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoSnapshot
	}
	return s.current, nil
}

func (s *MemoryStore) ByListDate(_ context.Context, date domain.ListDate) (*domain.WatchlistSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byDate[date]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}
