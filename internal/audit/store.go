package audit

import "context"

// Store is the append-only sink for audit events. The postgres
// implementation writes to the outbox table; the worker drains it to Kafka.
type Store interface {
	Append(ctx context.Context, event Event) error
}
