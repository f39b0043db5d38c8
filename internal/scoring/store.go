package scoring

import (
	"context"
	"errors"

	"listscreen/internal/domain"
)

// ErrRunNotFound is returned when no run exists for a list date.
var ErrRunNotFound = errors.New("score run not found")

// InsertOutcome reports whether an insert landed or hit the uniqueness
// constraint. alreadyExists is the durable progress marker for resumed runs.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	AlreadyExists
)

// Store persists score records and run bookkeeping. Implementations must
// enforce (customer_id, list_date) uniqueness; the coordinator's idempotency
// depends on it.
type Store interface {
	// InsertScoreIfAbsent writes the record unless one already exists for
	// its (customer, list date) pair. Hitting the constraint is a normal
	// outcome, never an error.
	InsertScoreIfAbsent(ctx context.Context, rec domain.ScoreRecord) (InsertOutcome, error)

	// ScoresForDate lists records for a date sorted by score descending,
	// paginated. The read surface reuses this for operator queries.
	ScoresForDate(ctx context.Context, date domain.ListDate, offset, limit int) ([]domain.ScoreRecord, error)

	// ScoredCustomerIDs returns the ids already scored for a date; resumed
	// runs skip these.
	ScoredCustomerIDs(ctx context.Context, date domain.ListDate) (map[string]struct{}, error)

	// ListDates returns the distinct list dates with scores, oldest first.
	ListDates(ctx context.Context) ([]domain.ListDate, error)

	// SaveRun upserts run bookkeeping keyed by list date.
	SaveRun(ctx context.Context, run *domain.ScoreRun) error

	// RunForDate returns the run for a list date, or ErrRunNotFound.
	RunForDate(ctx context.Context, date domain.ListDate) (*domain.ScoreRun, error)
}
