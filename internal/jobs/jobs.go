// Package jobs is the asynchronous execution substrate for ingestion and
// scoring. Both are implementations of the same resumable, idempotent Task
// shape; the scheduler guarantees at-least-once execution and the tasks'
// idempotency makes that safe.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"listscreen/internal/customers"
	"listscreen/internal/domain"
	"listscreen/internal/scoring"
	"listscreen/internal/watchlist"
)

// Task is one unit of work. Run may be invoked more than once for the same
// logical trigger; implementations must tolerate that.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler accepts the two unit-of-work kinds the service executes.
type Scheduler interface {
	EnqueueIngestion(ctx context.Context) error
	EnqueueScoring(ctx context.Context, date domain.ListDate) error
}

// SourceProvider opens a fresh raw-record sequence for each ingestion run.
// The upstream fetch/parse lives behind it.
type SourceProvider interface {
	Open(ctx context.Context) (watchlist.ListSource, error)
}

// IngestionTask publishes a new watchlist snapshot.
type IngestionTask struct {
	Ingestor *watchlist.Ingestor
	Provider SourceProvider
}

func (t *IngestionTask) Name() string { return "watchlist_ingestion" }

func (t *IngestionTask) Run(ctx context.Context) error {
	source, err := t.Provider.Open(ctx)
	if err != nil {
		return fmt.Errorf("open list source: %w", err)
	}
	if _, err := t.Ingestor.Ingest(ctx, source); err != nil {
		return fmt.Errorf("ingestion task: %w", err)
	}
	return nil
}

// ScoringTask screens the population against one list date's snapshot, or
// the current snapshot when the date is empty.
type ScoringTask struct {
	Coordinator *scoring.Coordinator
	Snapshots   watchlist.SnapshotStore
	Customers   customers.Source
	Date        domain.ListDate
	Logger      *slog.Logger
}

func (t *ScoringTask) Name() string { return "batch_scoring" }

func (t *ScoringTask) Run(ctx context.Context) error {
	var (
		snap *domain.WatchlistSnapshot
		err  error
	)
	if t.Date == "" {
		snap, err = t.Snapshots.Current(ctx)
	} else {
		snap, err = t.Snapshots.ByListDate(ctx, t.Date)
	}
	if errors.Is(err, watchlist.ErrNoSnapshot) {
		return scoring.ErrNoWatchlist
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	_, err = t.Coordinator.StartRun(ctx, snap, t.Customers)
	if errors.Is(err, scoring.ErrRunInProgress) {
		// a second at-least-once delivery; the active holder finishes it
		if t.Logger != nil {
			t.Logger.Info("scoring already in progress, dropping duplicate delivery", "list_date", snap.ListDate)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("scoring task: %w", err)
	}
	return nil
}
