// Package customers exposes the read-only customer population consumed by
// scoring runs. The system of record lives elsewhere; this side only reads.
package customers

import (
	"context"

	"listscreen/internal/domain"
)

// Source supplies the customer population as a lazy, restartable, batchable
// sequence. NextBatch(offset, limit) must be stable for a given point in
// time so an interrupted run can re-walk the same population.
type Source interface {
	// Count returns the total population size.
	Count(ctx context.Context) (int, error)

	// NextBatch returns up to limit customers starting at offset. An empty
	// slice means the population is exhausted.
	NextBatch(ctx context.Context, offset, limit int) ([]domain.CustomerIdentity, error)
}
