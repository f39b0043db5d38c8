// Package audit captures the compliance trail for watchlist ingestion and
// scoring runs. Events are appended to a store (outbox-backed in production)
// and fanned out to Kafka by the outbox worker; Kafka is the source of truth
// for downstream compliance consumers.
package audit

import (
	"time"

	"listscreen/internal/domain"
)

// Action names the lifecycle moments that need a durable trail.
type Action string

const (
	ActionSnapshotPublished Action = "watchlist_snapshot_published"
	ActionIngestionFailed   Action = "watchlist_ingestion_failed"
	ActionRunStarted        Action = "score_run_started"
	ActionRunFinished       Action = "score_run_finished"
)

// Event is emitted from domain logic. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	ListDate  domain.ListDate
	Subject   string // snapshot id or run id
	Outcome   string // entry count, terminal run state, or error kind
	Detail    string
}
