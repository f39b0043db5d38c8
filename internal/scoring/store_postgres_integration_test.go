//go:build integration

package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"listscreen/internal/domain"
	"listscreen/pkg/testutil/containers"
)

type ScoringPostgresSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestScoringPostgresSuite(t *testing.T) {
	suite.Run(t, new(ScoringPostgresSuite))
}

func (s *ScoringPostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgresStore(s.pg.DB)
}

func (s *ScoringPostgresSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *ScoringPostgresSuite) TestInsertScoreIfAbsent() {
	ctx := context.Background()
	rec := domain.ScoreRecord{
		CustomerID: "c1",
		ListDate:   "2026-08-20",
		Score:      42,
		ScoredAt:   time.Now().UTC(),
	}

	outcome, err := s.store.InsertScoreIfAbsent(ctx, rec)
	s.Require().NoError(err)
	s.Equal(Inserted, outcome)

	// the second write loses; the first record stands
	rec.Score = 99
	outcome, err = s.store.InsertScoreIfAbsent(ctx, rec)
	s.Require().NoError(err)
	s.Equal(AlreadyExists, outcome)

	got, err := s.store.ScoresForDate(ctx, "2026-08-20", 0, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(42, got[0].Score)

	// a different list date is a fresh pair
	rec.ListDate = "2026-08-21"
	outcome, err = s.store.InsertScoreIfAbsent(ctx, rec)
	s.Require().NoError(err)
	s.Equal(Inserted, outcome)
}

func (s *ScoringPostgresSuite) TestScoresForDate_SortedAndPaginated() {
	ctx := context.Background()
	for _, rec := range []domain.ScoreRecord{
		{CustomerID: "c-low", ListDate: "2026-08-20", Score: 5, ScoredAt: time.Now().UTC()},
		{CustomerID: "c-high", ListDate: "2026-08-20", Score: 95, ScoredAt: time.Now().UTC()},
		{CustomerID: "c-mid", ListDate: "2026-08-20", Score: 50, ScoredAt: time.Now().UTC()},
	} {
		_, err := s.store.InsertScoreIfAbsent(ctx, rec)
		s.Require().NoError(err)
	}

	page, err := s.store.ScoresForDate(ctx, "2026-08-20", 0, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal("c-high", page[0].CustomerID)
	s.Equal("c-mid", page[1].CustomerID)

	page, err = s.store.ScoresForDate(ctx, "2026-08-20", 2, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal("c-low", page[0].CustomerID)
}

func (s *ScoringPostgresSuite) TestScoredCustomerIDs() {
	ctx := context.Background()
	for _, id := range []string{"c1", "c2"} {
		_, err := s.store.InsertScoreIfAbsent(ctx, domain.ScoreRecord{
			CustomerID: id, ListDate: "2026-08-20", Score: 10, ScoredAt: time.Now().UTC(),
		})
		s.Require().NoError(err)
	}
	_, err := s.store.InsertScoreIfAbsent(ctx, domain.ScoreRecord{
		CustomerID: "c3", ListDate: "2026-08-21", Score: 10, ScoredAt: time.Now().UTC(),
	})
	s.Require().NoError(err)

	scored, err := s.store.ScoredCustomerIDs(ctx, "2026-08-20")
	s.Require().NoError(err)
	s.Len(scored, 2)
	s.Contains(scored, "c1")
	s.Contains(scored, "c2")
	s.NotContains(scored, "c3")
}

func (s *ScoringPostgresSuite) TestListDates() {
	ctx := context.Background()
	for _, date := range []domain.ListDate{"2026-08-21", "2026-08-19", "2026-08-21"} {
		_, err := s.store.InsertScoreIfAbsent(ctx, domain.ScoreRecord{
			CustomerID: uuid.NewString(), ListDate: date, Score: 10, ScoredAt: time.Now().UTC(),
		})
		s.Require().NoError(err)
	}

	dates, err := s.store.ListDates(ctx)
	s.Require().NoError(err)
	s.Equal([]domain.ListDate{"2026-08-19", "2026-08-21"}, dates)
}

func (s *ScoringPostgresSuite) TestRunBookkeeping() {
	ctx := context.Background()

	_, err := s.store.RunForDate(ctx, "2026-08-20")
	s.ErrorIs(err, ErrRunNotFound)

	run := &domain.ScoreRun{
		ID:             uuid.NewString(),
		ListDate:       "2026-08-20",
		State:          domain.RunRunning,
		TotalCustomers: 100,
		Completed:      40,
		StartedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.SaveRun(ctx, run))

	got, err := s.store.RunForDate(ctx, "2026-08-20")
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)
	s.Equal(domain.RunRunning, got.State)
	s.Equal(40, got.Completed)
	s.True(got.FinishedAt.IsZero(), "running run has no finish time")

	// checkpointing upserts in place
	run.State = domain.RunPartiallyCompleted
	run.Completed = 98
	run.Failed = 2
	run.FailedIDs = []string{"c4", "c9"}
	run.FinishedAt = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.SaveRun(ctx, run))

	got, err = s.store.RunForDate(ctx, "2026-08-20")
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)
	s.Equal(domain.RunPartiallyCompleted, got.State)
	s.Equal([]string{"c4", "c9"}, got.FailedIDs)
	s.False(got.FinishedAt.IsZero())
}
