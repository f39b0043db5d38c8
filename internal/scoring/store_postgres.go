package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"listscreen/internal/domain"
)

// PostgresStore persists score records and run bookkeeping. The
// (customer_id, list_date) primary key enforces at most one score per
// customer per list version; InsertScoreIfAbsent leans on it with
// ON CONFLICT DO NOTHING.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertScoreIfAbsent(ctx context.Context, rec domain.ScoreRecord) (InsertOutcome, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO score_records (customer_id, list_date, score, matched_entry_id, scored_at)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (customer_id, list_date) DO NOTHING
	`, rec.CustomerID, rec.ListDate.String(), rec.Score, rec.MatchedEntryID, rec.ScoredAt)
	if err != nil {
		return Inserted, fmt.Errorf("insert score record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Inserted, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return AlreadyExists, nil
	}
	return Inserted, nil
}

func (s *PostgresStore) ScoresForDate(ctx context.Context, date domain.ListDate, offset, limit int) ([]domain.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, list_date::text, score, matched_entry_id, scored_at
		FROM score_records
		WHERE list_date = $1::date
		ORDER BY score DESC, customer_id
		OFFSET $2 LIMIT $3
	`, date.String(), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreRecord
	for rows.Next() {
		var (
			rec      domain.ScoreRecord
			listDate string
		)
		if err := rows.Scan(&rec.CustomerID, &listDate, &rec.Score, &rec.MatchedEntryID, &rec.ScoredAt); err != nil {
			return nil, fmt.Errorf("scan score record: %w", err)
		}
		rec.ListDate = domain.ListDate(listDate)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ScoredCustomerIDs(ctx context.Context, date domain.ListDate) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id FROM score_records WHERE list_date = $1::date
	`, date.String())
	if err != nil {
		return nil, fmt.Errorf("query scored ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scored id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scored ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ListDates(ctx context.Context) ([]domain.ListDate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT list_date::text FROM score_records ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query list dates: %w", err)
	}
	defer rows.Close()

	var dates []domain.ListDate
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan list date: %w", err)
		}
		dates = append(dates, domain.ListDate(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list dates: %w", err)
	}
	return dates, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *domain.ScoreRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_runs (id, list_date, state, total_customers, completed, failed, failed_ids, started_at, finished_at)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (list_date) DO UPDATE SET
			state = EXCLUDED.state,
			total_customers = EXCLUDED.total_customers,
			completed = EXCLUDED.completed,
			failed = EXCLUDED.failed,
			failed_ids = EXCLUDED.failed_ids,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`, run.ID, run.ListDate.String(), string(run.State), run.TotalCustomers,
		run.Completed, run.Failed, pq.Array(failedIDs(run)), nullableTime(run.StartedAt), nullableTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *PostgresStore) RunForDate(ctx context.Context, date domain.ListDate) (*domain.ScoreRun, error) {
	var (
		run        domain.ScoreRun
		listDate   string
		state      string
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, list_date::text, state, total_customers, completed, failed, failed_ids, started_at, finished_at
		FROM score_runs
		WHERE list_date = $1::date
	`, date.String()).Scan(
		&run.ID, &listDate, &state, &run.TotalCustomers,
		&run.Completed, &run.Failed, pq.Array(&run.FailedIDs), &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	run.ListDate = domain.ListDate(listDate)
	run.State = domain.RunState(state)
	if startedAt.Valid {
		run.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

// failedIDs maps a nil slice to an empty array; the column is NOT NULL.
func failedIDs(run *domain.ScoreRun) []string {
	if run.FailedIDs == nil {
		return []string{}
	}
	return run.FailedIDs
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
