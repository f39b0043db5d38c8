// Package scoring runs the batch screening of the customer population
// against one pinned watchlist snapshot. Runs are idempotent and resumable:
// the (customer, list date) uniqueness constraint is the durable progress
// marker, so an interrupted run picks up where the records stop.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"listscreen/internal/audit"
	"listscreen/internal/customers"
	"listscreen/internal/domain"
	"listscreen/internal/screening"
	"listscreen/internal/scoring/metrics"
	"listscreen/internal/scoring/runlock"
)

var (
	// ErrNoWatchlist means no snapshot has ever been ingested; there is
	// nothing to score against.
	ErrNoWatchlist = errors.New("scoring: no ingested watchlist snapshot")

	// ErrStoreUnavailable means the score store cannot persist any record;
	// fatal for the run, which stays resumable.
	ErrStoreUnavailable = errors.New("scoring: score store unavailable")

	// ErrRunInProgress means another holder has the lease for this date.
	ErrRunInProgress = errors.New("scoring: run already in progress for list date")
)

var tracer = otel.Tracer("listscreen/scoring")

// Defaults; all overridable via options.
const (
	DefaultBatchSize     = 1000
	DefaultMaxAttempts   = 3
	DefaultScreenTimeout = 5 * time.Second
	defaultRetryBackoff  = 100 * time.Millisecond
	defaultLockTTL       = time.Hour

	// consecutive store-write failures before the run is declared fatal
	// rather than accumulating per-customer failures forever
	storeFailureThreshold = 10
)

// Coordinator orchestrates score runs. Screening itself is pure and
// stateless; only batch reads and record writes block.
type Coordinator struct {
	store   Store
	lock    runlock.Lock
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	batchSize     int
	workers       int
	maxAttempts   int
	screenTimeout time.Duration
	retryBackoff  time.Duration
	lockTTL       time.Duration
	now           func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// WithAuditor sets the audit publisher for run lifecycle events.
func WithAuditor(auditor *audit.Publisher) CoordinatorOption {
	return func(c *Coordinator) { c.auditor = auditor }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithBatchSize bounds how many customers are held in memory at once.
func WithBatchSize(n int) CoordinatorOption {
	return func(c *Coordinator) { c.batchSize = n }
}

// WithWorkers bounds the concurrent screening fan-out.
func WithWorkers(n int) CoordinatorOption {
	return func(c *Coordinator) { c.workers = n }
}

// WithMaxAttempts bounds per-customer retries before recording a failure.
func WithMaxAttempts(n int) CoordinatorOption {
	return func(c *Coordinator) { c.maxAttempts = n }
}

// WithScreenTimeout bounds one customer's screening attempt.
func WithScreenTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.screenTimeout = d }
}

// WithLockTTL sets the run-lock lease duration. A crashed holder's lease
// lapses after this long.
func WithLockTTL(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.lockTTL = d }
}

// WithRetryBackoff sets the base backoff between per-customer attempts.
func WithRetryBackoff(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.retryBackoff = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(store Store, lock runlock.Lock, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:         store,
		lock:          lock,
		logger:        slog.Default(),
		batchSize:     DefaultBatchSize,
		workers:       runtime.NumCPU(),
		maxAttempts:   DefaultMaxAttempts,
		screenTimeout: DefaultScreenTimeout,
		retryBackoff:  defaultRetryBackoff,
		lockTTL:       defaultLockTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.lock == nil {
		c.lock = runlock.NewMemoryLock()
	}
	return c
}

// StartRun screens the whole population against the snapshot. The snapshot
// is pinned for the run's duration; a concurrent re-ingestion only affects
// future runs. Re-triggering a date whose run already completed returns the
// existing run without recomputing.
func (c *Coordinator) StartRun(ctx context.Context, snapshot *domain.WatchlistSnapshot, source customers.Source) (*domain.ScoreRun, error) {
	if snapshot == nil || snapshot.EntryCount == 0 {
		return nil, ErrNoWatchlist
	}

	ctx, span := tracer.Start(ctx, "scoring.StartRun")
	defer span.End()

	date := snapshot.ListDate

	existing, err := c.store.RunForDate(ctx, date)
	if err != nil && !errors.Is(err, ErrRunNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing != nil && existing.State == domain.RunCompleted {
		c.logger.Info("score run already completed, returning existing run",
			"list_date", date, "run_id", existing.ID)
		return existing, nil
	}

	acquired, err := c.lock.Acquire(ctx, date, c.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := c.lock.Release(context.WithoutCancel(ctx), date); err != nil {
			c.logger.Warn("release run lock failed", "list_date", date, "error", err)
		}
	}()

	total, err := source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count customer population: %w", err)
	}

	run := c.resumeOrCreateRun(existing, date, total)
	if err := c.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	c.auditor.Emit(ctx, audit.Event{
		Action:   audit.ActionRunStarted,
		ListDate: date,
		Subject:  run.ID,
		Detail:   fmt.Sprintf("%d customers, snapshot %s", total, snapshot.ID),
	})

	runErr := c.processPopulation(ctx, run, snapshot, source)
	c.finishRun(ctx, run, runErr)

	if runErr != nil {
		return run, runErr
	}
	return run, nil
}

// resumeOrCreateRun reuses the prior run's identity when resuming an
// interrupted or failed run for the same date.
func (c *Coordinator) resumeOrCreateRun(existing *domain.ScoreRun, date domain.ListDate, total int) *domain.ScoreRun {
	run := &domain.ScoreRun{
		ID:             uuid.NewString(),
		ListDate:       date,
		State:          domain.RunRunning,
		TotalCustomers: total,
		StartedAt:      c.now(),
	}
	if existing != nil {
		run.ID = existing.ID
		if !existing.StartedAt.IsZero() {
			run.StartedAt = existing.StartedAt
		}
	}
	return run
}

// runProgress accumulates per-customer outcomes across workers.
type runProgress struct {
	mu            sync.Mutex
	completed     int
	failedIDs     []string
	storeFailures int // consecutive, reset on any success
}

func (p *runProgress) success() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	p.storeFailures = 0
}

func (p *runProgress) failure(customerID string, storeFailure bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failedIDs = append(p.failedIDs, customerID)
	if storeFailure {
		p.storeFailures++
	} else {
		p.storeFailures = 0
	}
	return p.storeFailures >= storeFailureThreshold
}

func (c *Coordinator) processPopulation(ctx context.Context, run *domain.ScoreRun, snapshot *domain.WatchlistSnapshot, source customers.Source) error {
	scored, err := c.store.ScoredCustomerIDs(ctx, run.ListDate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	progress := &runProgress{completed: len(scored)}

	for offset := 0; ; offset += c.batchSize {
		// cancellation is cooperative at batch boundaries; records already
		// written stay put and a later run resumes past them
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := source.NextBatch(ctx, offset, c.batchSize)
		if err != nil {
			return fmt.Errorf("fetch customer batch at %d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}

		if err := c.processBatch(ctx, run.ListDate, snapshot, batch, scored, progress); err != nil {
			return err
		}

		// checkpoint progress at the batch boundary
		run.Completed = progress.completed
		run.Failed = len(progress.failedIDs)
		if err := c.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	run.Completed = progress.completed
	run.Failed = len(progress.failedIDs)
	sort.Strings(progress.failedIDs)
	run.FailedIDs = progress.failedIDs
	return nil
}

// errStoreFatal aborts the worker group when consecutive store failures
// cross the threshold.
var errStoreFatal = errors.New("scoring: consecutive store failures crossed threshold")

func (c *Coordinator) processBatch(
	ctx context.Context,
	date domain.ListDate,
	snapshot *domain.WatchlistSnapshot,
	batch []domain.CustomerIdentity,
	scored map[string]struct{},
	progress *runProgress,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, candidate := range batch {
		if _, done := scored[candidate.CustomerID]; done {
			c.metrics.IncrementScreened("already_scored")
			continue
		}

		g.Go(func() error {
			return c.screenOne(gctx, date, snapshot, candidate, progress)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, errStoreFatal) {
			return fmt.Errorf("%w: repeated write failures", ErrStoreUnavailable)
		}
		return err
	}
	return nil
}

// screenOne scores a single customer and persists the record, retrying
// transient failures with backoff. A customer that still fails after the
// attempt budget is recorded against the run; it never aborts the run unless
// the store itself looks down.
func (c *Coordinator) screenOne(
	ctx context.Context,
	date domain.ListDate,
	snapshot *domain.WatchlistSnapshot,
	candidate domain.CustomerIdentity,
	progress *runProgress,
) error {
	start := c.now()

	if candidate.CustomerID == "" {
		// malformed identity: nothing to retry, record and continue
		c.metrics.IncrementScreened("failed")
		c.logger.Warn("malformed customer identity skipped", "list_date", date)
		if progress.failure("", false) {
			return errStoreFatal
		}
		return nil
	}

	var lastErr error
	storeFailure := false
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.screenTimeout)
		result := screening.Score(candidate, snapshot)
		// the scoring pass counts against the budget too; a pathological
		// snapshot surfaces here rather than silently overrunning
		var outcome InsertOutcome
		err := attemptCtx.Err()
		if err == nil {
			outcome, err = c.store.InsertScoreIfAbsent(attemptCtx, domain.ScoreRecord{
				CustomerID:     candidate.CustomerID,
				ListDate:       date,
				Score:          result.Score,
				MatchedEntryID: result.MatchedEntryID,
				ScoredAt:       c.now(),
			})
		}
		cancel()

		if err == nil {
			switch outcome {
			case Inserted:
				c.metrics.IncrementScreened("inserted")
			case AlreadyExists:
				// another attempt (or a prior interrupted run) got here
				// first; that is completion, not a conflict
				c.metrics.IncrementScreened("already_scored")
			}
			c.metrics.ObserveScreen(c.now().Sub(start))
			progress.success()
			return nil
		}

		lastErr = err
		storeFailure = !errors.Is(err, context.DeadlineExceeded)

		if ctx.Err() != nil {
			// the run is being cancelled; do not burn the remaining attempts
			break
		}
		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
		}
	}

	c.metrics.IncrementScreened("failed")
	c.logger.Warn("customer screening failed after retries",
		"customer_id", candidate.CustomerID,
		"list_date", date,
		"attempts", c.maxAttempts,
		"error", lastErr)

	if progress.failure(candidate.CustomerID, storeFailure) {
		return errStoreFatal
	}
	return nil
}

// finishRun assigns the terminal state, persists it, and emits the trail.
func (c *Coordinator) finishRun(ctx context.Context, run *domain.ScoreRun, runErr error) {
	switch {
	case runErr == nil && run.Failed == 0:
		run.State = domain.RunCompleted
	case runErr == nil:
		run.State = domain.RunPartiallyCompleted
	default:
		run.State = domain.RunFailed
	}
	run.FinishedAt = c.now()

	// persist the terminal state even when the parent context is gone
	saveCtx := context.WithoutCancel(ctx)
	if err := c.store.SaveRun(saveCtx, run); err != nil {
		c.logger.Error("persist terminal run state failed",
			"run_id", run.ID, "state", run.State, "error", err)
	}

	c.metrics.IncrementRunOutcome(string(run.State))
	c.metrics.ObserveRun(run.FinishedAt.Sub(run.StartedAt))

	outcome := string(run.State)
	if runErr != nil {
		outcome = fmt.Sprintf("%s: %v", run.State, runErr)
	}
	c.auditor.Emit(saveCtx, audit.Event{
		Action:   audit.ActionRunFinished,
		ListDate: run.ListDate,
		Subject:  run.ID,
		Outcome:  outcome,
		Detail:   fmt.Sprintf("completed=%d failed=%d of %d", run.Completed, run.Failed, run.TotalCustomers),
	})
	c.logger.Info("score run finished",
		"run_id", run.ID,
		"list_date", run.ListDate,
		"state", run.State,
		"completed", run.Completed,
		"failed", run.Failed,
		"total", run.TotalCustomers)
}
