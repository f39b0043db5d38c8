package scoring

import (
	"context"
	"sort"
	"sync"

	"listscreen/internal/domain"
)

type scoreKey struct {
	customerID string
	listDate   domain.ListDate
}

// MemoryStore is an in-memory Store for tests and single-process runs. It
// enforces the same (customer, list date) uniqueness the postgres primary
// key does.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[scoreKey]domain.ScoreRecord
	runs    map[domain.ListDate]domain.ScoreRun

	// failInserts simulates a store outage when set; tests only.
	failInserts error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[scoreKey]domain.ScoreRecord),
		runs:    make(map[domain.ListDate]domain.ScoreRun),
	}
}

// FailInserts makes every InsertScoreIfAbsent return err until reset to nil.
func (s *MemoryStore) FailInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInserts = err
}

func (s *MemoryStore) InsertScoreIfAbsent(_ context.Context, rec domain.ScoreRecord) (InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInserts != nil {
		return Inserted, s.failInserts
	}
	key := scoreKey{rec.CustomerID, rec.ListDate}
	if _, exists := s.records[key]; exists {
		return AlreadyExists, nil
	}
	s.records[key] = rec
	return Inserted, nil
}

func (s *MemoryStore) ScoresForDate(_ context.Context, date domain.ListDate, offset, limit int) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ScoreRecord
	for key, rec := range s.records {
		if key.listDate == date {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CustomerID < out[j].CustomerID
	})

	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (s *MemoryStore) ScoredCustomerIDs(_ context.Context, date domain.ListDate) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{})
	for key := range s.records {
		if key.listDate == date {
			ids[key.customerID] = struct{}{}
		}
	}
	return ids, nil
}

func (s *MemoryStore) ListDates(_ context.Context) ([]domain.ListDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.ListDate]struct{})
	for key := range s.records {
		seen[key.listDate] = struct{}{}
	}
	dates := make([]domain.ListDate, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run *domain.ScoreRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ListDate] = *run
	return nil
}

func (s *MemoryStore) RunForDate(_ context.Context, date domain.ListDate) (*domain.ScoreRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[date]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := run
	return &out, nil
}

// CountForDate reports how many records exist for a date; test helper.
func (s *MemoryStore) CountForDate(date domain.ListDate) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.records {
		if key.listDate == date {
			n++
		}
	}
	return n
}
