package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher emits audit events with fail-open semantics: a failed append is
// logged but never fails the calling operation. Ingestion and scoring must
// not abort because the trail is briefly unavailable.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for append failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit appends the event, stamping the timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.store == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("audit append failed",
			"action", event.Action,
			"subject", event.Subject,
			"error", err)
	}
}
