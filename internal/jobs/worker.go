package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"listscreen/internal/domain"
)

// ChannelScheduler is the in-process Scheduler: enqueued units land on a
// buffered channel drained by Worker goroutines. A distributed queue can
// replace it behind the same interface.
type ChannelScheduler struct {
	inbox     chan Task
	ingestion func() Task
	scoring   func(domain.ListDate) Task
}

// NewChannelScheduler builds a scheduler producing tasks from the given
// factories. buffer bounds how many units may be pending.
func NewChannelScheduler(buffer int, ingestion func() Task, scoring func(domain.ListDate) Task) *ChannelScheduler {
	return &ChannelScheduler{
		inbox:     make(chan Task, buffer),
		ingestion: ingestion,
		scoring:   scoring,
	}
}

func (s *ChannelScheduler) EnqueueIngestion(ctx context.Context) error {
	return s.enqueue(ctx, s.ingestion())
}

func (s *ChannelScheduler) EnqueueScoring(ctx context.Context, date domain.ListDate) error {
	return s.enqueue(ctx, s.scoring(date))
}

func (s *ChannelScheduler) enqueue(ctx context.Context, task Task) error {
	// check cancellation up front: with a ready buffered channel the send
	// would win a select against ctx.Done()
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.inbox <- task:
		return nil
	default:
		return fmt.Errorf("job queue full, rejecting %s", task.Name())
	}
}

// Inbox exposes the task channel to workers.
func (s *ChannelScheduler) Inbox() <-chan Task {
	return s.inbox
}

// Worker consumes tasks from an inbox and runs them one at a time. Failed
// tasks are logged, not requeued; the operator re-triggers explicitly and
// task idempotency absorbs the repeat.
type Worker struct {
	inbox  <-chan Task
	logger *slog.Logger
}

func NewWorker(inbox <-chan Task, logger *slog.Logger) *Worker {
	return &Worker{inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-w.inbox:
			w.logger.Info("job started", "job", task.Name())
			if err := task.Run(ctx); err != nil {
				w.logger.Error("job failed", "job", task.Name(), "error", err)
				continue
			}
			w.logger.Info("job finished", "job", task.Name())
		}
	}
}
