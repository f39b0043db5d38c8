package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink is where the outbox worker delivers payloads. KafkaPublisher is the
// production implementation.
type Sink interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}

// OutboxWorker drains undelivered audit_outbox rows to the sink. Delivery is
// at-least-once: rows are marked published only after the produce succeeds,
// so a crash in between re-delivers on restart.
type OutboxWorker struct {
	store     *PostgresStore
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewOutboxWorker(store *PostgresStore, sink Sink, logger *slog.Logger) *OutboxWorker {
	return &OutboxWorker{
		store:     store,
		sink:      sink,
		logger:    logger,
		interval:  2 * time.Second,
		batchSize: 100,
	}
}

// Run polls the outbox until the context is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (w *OutboxWorker) drainOnce(ctx context.Context) error {
	batch, err := w.store.nextBatch(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	published := batch[:0]
	for _, row := range batch {
		if err := w.sink.Publish(ctx, row.EventType, row.Payload); err != nil {
			// Stop at the first failure; the remainder is retried next tick.
			w.logger.Warn("audit publish failed", "event_id", row.ID, "error", err)
			break
		}
		published = append(published, row)
	}

	return w.store.markPublished(ctx, rowIDs(published))
}

func rowIDs(rows []outboxRow) []uuid.UUID {
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}
