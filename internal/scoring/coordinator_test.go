package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listscreen/internal/audit"
	"listscreen/internal/customers"
	"listscreen/internal/domain"
	"listscreen/internal/scoring/runlock"
	"listscreen/internal/watchlist"
)

func testSnapshot(t *testing.T) *domain.WatchlistSnapshot {
	t.Helper()
	snap, err := watchlist.NewIngestor(watchlist.NewMemoryStore()).
		Ingest(context.Background(), watchlist.NewSliceSource([]watchlist.RawListRecord{
			{PrimaryName: "Juan Pérez", City: "Caracas", Country: "VE", Category: "individual"},
			{PrimaryName: "Maria Lopez", City: "Lima", Country: "PE", Category: "individual"},
			{PrimaryName: "Northern Star Shipping", Category: "entity"},
		}))
	require.NoError(t, err)
	return snap
}

func population(n int) []domain.CustomerIdentity {
	out := make([]domain.CustomerIdentity, n)
	for i := range out {
		out[i] = domain.CustomerIdentity{
			CustomerID:  fmt.Sprintf("cust-%04d", i),
			DisplayName: fmt.Sprintf("Customer %d", i),
			Country:     "GB",
		}
	}
	return out
}

func newTestCoordinator(store Store, opts ...CoordinatorOption) *Coordinator {
	base := []CoordinatorOption{
		WithBatchSize(4),
		WithWorkers(3),
		WithRetryBackoff(time.Millisecond),
	}
	return NewCoordinator(store, runlock.NewMemoryLock(), append(base, opts...)...)
}

func TestStartRun_CompletesAndScoresEveryone(t *testing.T) {
	store := NewMemoryStore()
	snap := testSnapshot(t)
	coord := newTestCoordinator(store)

	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(10)))
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.State)
	assert.Equal(t, 10, run.TotalCustomers)
	assert.Equal(t, 10, run.Completed)
	assert.Zero(t, run.Failed)
	assert.Equal(t, 10, store.CountForDate(snap.ListDate))

	records, err := store.ScoresForDate(context.Background(), snap.ListDate, 0, 100)
	require.NoError(t, err)
	for _, rec := range records {
		assert.GreaterOrEqual(t, rec.Score, 0)
		assert.LessOrEqual(t, rec.Score, 100)
	}
}

func TestStartRun_NoWatchlist(t *testing.T) {
	coord := newTestCoordinator(NewMemoryStore())

	_, err := coord.StartRun(context.Background(), nil, customers.NewMemorySource(population(1)))
	assert.ErrorIs(t, err, ErrNoWatchlist)
}

func TestStartRun_SecondCallIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	snap := testSnapshot(t)
	coord := newTestCoordinator(store)
	src := customers.NewMemorySource(population(8))

	first, err := coord.StartRun(context.Background(), snap, src)
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, first.State)

	second, err := coord.StartRun(context.Background(), snap, src)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 8, store.CountForDate(snap.ListDate))
	assert.Zero(t, second.Failed)
}

func TestStartRun_ResumesAfterInterruption(t *testing.T) {
	store := NewMemoryStore()
	snap := testSnapshot(t)
	pop := population(10)

	// simulate a prior run that scored the first 4 customers then died
	for _, c := range pop[:4] {
		_, err := store.InsertScoreIfAbsent(context.Background(), domain.ScoreRecord{
			CustomerID: c.CustomerID,
			ListDate:   snap.ListDate,
			Score:      7,
			ScoredAt:   time.Now(),
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.SaveRun(context.Background(), &domain.ScoreRun{
		ID:             "run-interrupted",
		ListDate:       snap.ListDate,
		State:          domain.RunFailed,
		TotalCustomers: 10,
		StartedAt:      time.Now().Add(-time.Hour),
	}))

	coord := newTestCoordinator(store)
	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(pop))
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.State)
	assert.Equal(t, "run-interrupted", run.ID, "resume keeps the prior run identity")
	assert.Equal(t, 10, run.Completed)
	assert.Equal(t, 10, store.CountForDate(snap.ListDate), "exactly N records, no duplicates")

	// pre-scored customers kept their original scores
	scored, err := store.ScoresForDate(context.Background(), snap.ListDate, 0, 100)
	require.NoError(t, err)
	byID := make(map[string]int, len(scored))
	for _, rec := range scored {
		byID[rec.CustomerID] = rec.Score
	}
	for _, c := range pop[:4] {
		assert.Equal(t, 7, byID[c.CustomerID], "resume must not re-score %s", c.CustomerID)
	}
}

// failingStore fails inserts for selected customers a fixed number of times.
type failingStore struct {
	*MemoryStore
	failures map[string]int
}

func (s *failingStore) InsertScoreIfAbsent(ctx context.Context, rec domain.ScoreRecord) (InsertOutcome, error) {
	if n := s.failures[rec.CustomerID]; n > 0 {
		s.failures[rec.CustomerID] = n - 1
		return Inserted, errors.New("transient write failure")
	}
	return s.MemoryStore.InsertScoreIfAbsent(ctx, rec)
}

func TestStartRun_TransientFailureIsRetried(t *testing.T) {
	store := &failingStore{
		MemoryStore: NewMemoryStore(),
		failures:    map[string]int{"cust-0002": 2}, // fails twice, third attempt lands
	}
	snap := testSnapshot(t)
	coord := newTestCoordinator(store, WithWorkers(1), WithMaxAttempts(3))

	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(5)))
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.State)
	assert.Equal(t, 5, store.CountForDate(snap.ListDate))
}

func TestStartRun_ExhaustedRetriesYieldPartiallyCompleted(t *testing.T) {
	store := &failingStore{
		MemoryStore: NewMemoryStore(),
		failures:    map[string]int{"cust-0001": 100},
	}
	snap := testSnapshot(t)
	coord := newTestCoordinator(store, WithWorkers(1), WithMaxAttempts(2))

	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(5)))
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartiallyCompleted, run.State)
	assert.Equal(t, 4, run.Completed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, []string{"cust-0001"}, run.FailedIDs)
	assert.Equal(t, 4, store.CountForDate(snap.ListDate))
}

// slowStore blocks inserts for selected customers until the attempt
// deadline expires.
type slowStore struct {
	*MemoryStore
	slow map[string]bool
}

func (s *slowStore) InsertScoreIfAbsent(ctx context.Context, rec domain.ScoreRecord) (InsertOutcome, error) {
	if s.slow[rec.CustomerID] {
		<-ctx.Done()
		return Inserted, ctx.Err()
	}
	return s.MemoryStore.InsertScoreIfAbsent(ctx, rec)
}

func TestStartRun_ScreenTimeoutIsPerCustomerFailure(t *testing.T) {
	store := &slowStore{
		MemoryStore: NewMemoryStore(),
		slow:        map[string]bool{"cust-0001": true},
	}
	snap := testSnapshot(t)
	coord := newTestCoordinator(store,
		WithWorkers(1),
		WithMaxAttempts(2),
		WithScreenTimeout(20*time.Millisecond))

	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(5)))
	require.NoError(t, err, "a budget overrun is a per-customer failure, never run-wide")

	assert.Equal(t, domain.RunPartiallyCompleted, run.State)
	assert.Equal(t, 4, run.Completed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, []string{"cust-0001"}, run.FailedIDs)
	assert.Equal(t, 4, store.CountForDate(snap.ListDate))
}

func TestStartRun_SpentBudgetNeverWrites(t *testing.T) {
	store := NewMemoryStore()
	snap := testSnapshot(t)
	// a deadline already behind us models a scoring pass that outran the
	// budget; the record must not land after that
	coord := newTestCoordinator(store,
		WithWorkers(1),
		WithMaxAttempts(1),
		WithScreenTimeout(-time.Millisecond))

	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(3)))
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartiallyCompleted, run.State)
	assert.Zero(t, run.Completed)
	assert.Equal(t, 3, run.Failed)
	assert.Zero(t, store.CountForDate(snap.ListDate))
}

func TestStartRun_StoreOutageIsFatal(t *testing.T) {
	store := NewMemoryStore()
	store.FailInserts(errors.New("connection refused"))
	snap := testSnapshot(t)
	coord := newTestCoordinator(store, WithMaxAttempts(1), WithBatchSize(50))

	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(40)))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunFailed, run.State)
}

func TestStartRun_LockContention(t *testing.T) {
	store := NewMemoryStore()
	snap := testSnapshot(t)
	lock := runlock.NewMemoryLock()

	held, err := lock.Acquire(context.Background(), snap.ListDate, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	coord := NewCoordinator(store, lock, WithBatchSize(4))
	_, err = coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(3)))
	assert.ErrorIs(t, err, ErrRunInProgress)
}

// cancellingSource cancels the run after serving its first batch.
type cancellingSource struct {
	inner  customers.Source
	cancel context.CancelFunc
	served bool
}

func (s *cancellingSource) Count(ctx context.Context) (int, error) {
	return s.inner.Count(ctx)
}

func (s *cancellingSource) NextBatch(ctx context.Context, offset, limit int) ([]domain.CustomerIdentity, error) {
	batch, err := s.inner.NextBatch(ctx, offset, limit)
	if !s.served {
		s.served = true
		s.cancel()
	}
	return batch, err
}

func TestStartRun_CancellationBetweenBatchesIsResumable(t *testing.T) {
	store := NewMemoryStore()
	snap := testSnapshot(t)
	pop := population(9)

	ctx, cancel := context.WithCancel(context.Background())
	src := &cancellingSource{inner: customers.NewMemorySource(pop), cancel: cancel}

	coord := newTestCoordinator(store, WithBatchSize(3), WithMaxAttempts(1))
	run, err := coord.StartRun(ctx, snap, src)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunFailed, run.State)
	written := store.CountForDate(snap.ListDate)
	assert.Less(t, written, 9, "cancelled before finishing the population")

	// resuming with a live context finishes the remaining customers
	resumed, err := newTestCoordinator(store, WithBatchSize(3)).
		StartRun(context.Background(), snap, customers.NewMemorySource(pop))
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, resumed.State)
	assert.Equal(t, 9, store.CountForDate(snap.ListDate))
	assert.Equal(t, 9, resumed.Completed)
}

func TestStartRun_MalformedIdentityRecordedNotFatal(t *testing.T) {
	store := NewMemoryStore()
	snap := testSnapshot(t)
	pop := population(4)
	pop[2].CustomerID = "" // malformed

	coord := newTestCoordinator(store, WithWorkers(1))
	run, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(pop))
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartiallyCompleted, run.State)
	assert.Equal(t, 3, run.Completed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 3, store.CountForDate(snap.ListDate))
}

func TestStartRun_EmitsAuditTrail(t *testing.T) {
	store := NewMemoryStore()
	sink := audit.NewMemoryStore()
	snap := testSnapshot(t)
	coord := newTestCoordinator(store, WithAuditor(audit.NewPublisher(sink)))

	_, err := coord.StartRun(context.Background(), snap, customers.NewMemorySource(population(2)))
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionRunStarted, events[0].Action)
	assert.Equal(t, audit.ActionRunFinished, events[1].Action)
	assert.Equal(t, snap.ListDate, events[1].ListDate)
}
