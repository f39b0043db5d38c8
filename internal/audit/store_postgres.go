package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store using the transactional outbox pattern.
// Append only touches the outbox table; the OutboxWorker drains it to Kafka.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON structure published to Kafka. Field names are the
// wire contract with downstream compliance consumers.
type outboxPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	ListDate  string `json:"list_date,omitempty"`
	Subject   string `json:"subject"`
	Outcome   string `json:"outcome,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Append writes the event to the outbox table for Kafka publishing.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    string(event.Action),
		ListDate:  event.ListDate.String(),
		Subject:   event.Subject,
		Outcome:   event.Outcome,
		Detail:    event.Detail,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, eventID, string(event.Action), payloadBytes, time.Now()); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// outboxRow is one undelivered entry claimed by the worker.
type outboxRow struct {
	ID        uuid.UUID
	EventType string
	Payload   []byte
}

// nextBatch claims up to limit undelivered outbox rows, oldest first.
func (s *PostgresStore) nextBatch(ctx context.Context, limit int) ([]outboxRow, error) {
	query := `
		SELECT id, event_type, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var batch []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.ID, &r.EventType, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return batch, nil
}

// markPublished stamps rows as delivered. Redelivery after a crash between
// produce and mark is possible; consumers dedupe on the event id.
func (s *PostgresStore) markPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1::uuid[])`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(idsParam(ids))); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func idsParam(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
