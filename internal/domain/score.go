package domain

import "time"

// ScoreRecord is the outcome of comparing one customer against one watchlist
// version. The (CustomerID, ListDate) pair is unique; the store enforces it.
type ScoreRecord struct {
	CustomerID     string
	ListDate       ListDate
	Score          int
	MatchedEntryID string
	ScoredAt       time.Time
}

// RunState tracks the lifecycle of a score run.
type RunState string

const (
	RunPending            RunState = "pending"
	RunRunning            RunState = "running"
	RunCompleted          RunState = "completed"
	RunFailed             RunState = "failed"
	RunPartiallyCompleted RunState = "partially_completed"
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunState) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunPartiallyCompleted:
		return true
	}
	return false
}

// ScoreRun is the bookkeeping for one batch scoring job over one list date.
// It aggregates progress; the ScoreRecords themselves are the durable result.
type ScoreRun struct {
	ID             string
	ListDate       ListDate
	State          RunState
	TotalCustomers int
	Completed      int
	Failed         int
	FailedIDs      []string
	StartedAt      time.Time
	FinishedAt     time.Time
}
