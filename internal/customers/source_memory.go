package customers

import (
	"context"

	"listscreen/internal/domain"
)

// MemorySource serves a fixed slice of customers for tests and seeding.
type MemorySource struct {
	population []domain.CustomerIdentity
}

func NewMemorySource(population []domain.CustomerIdentity) *MemorySource {
	return &MemorySource{population: population}
}

func (s *MemorySource) Count(_ context.Context) (int, error) {
	return len(s.population), nil
}

func (s *MemorySource) NextBatch(_ context.Context, offset, limit int) ([]domain.CustomerIdentity, error) {
	if offset >= len(s.population) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.population) {
		end = len(s.population)
	}
	out := make([]domain.CustomerIdentity, end-offset)
	copy(out, s.population[offset:end])
	return out, nil
}
