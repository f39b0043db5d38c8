package watchlist

import (
	"context"
	"errors"

	"listscreen/internal/domain"
)

// ErrNoSnapshot is returned when no snapshot has ever been published, or no
// snapshot exists for a requested list date.
var ErrNoSnapshot = errors.New("no watchlist snapshot")

// SnapshotStore persists published snapshots and tracks which one is current.
// Publish is the only mutation and must be atomic: readers holding the prior
// current snapshot keep a fully consistent view, copy-on-publish.
type SnapshotStore interface {
	// Publish stores the snapshot and atomically makes it current.
	Publish(ctx context.Context, snap *domain.WatchlistSnapshot) error

	// Current returns the current snapshot, or ErrNoSnapshot if none has
	// been published yet.
	Current(ctx context.Context) (*domain.WatchlistSnapshot, error)

	// ByListDate returns the snapshot published for the given list date, or
	// ErrNoSnapshot.
	ByListDate(ctx context.Context, date domain.ListDate) (*domain.WatchlistSnapshot, error)
}
