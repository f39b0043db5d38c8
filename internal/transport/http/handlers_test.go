package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listscreen/internal/domain"
	"listscreen/internal/scoring"
	"listscreen/internal/watchlist"
)

type recordingScheduler struct {
	ingestions int
	scorings   []domain.ListDate
	err        error
}

func (s *recordingScheduler) EnqueueIngestion(_ context.Context) error {
	if s.err != nil {
		return s.err
	}
	s.ingestions++
	return nil
}

func (s *recordingScheduler) EnqueueScoring(_ context.Context, date domain.ListDate) error {
	if s.err != nil {
		return s.err
	}
	s.scorings = append(s.scorings, date)
	return nil
}

func newTestRouter(t *testing.T, snapshots watchlist.SnapshotStore, scores scoring.Store, sched *recordingScheduler, opts ...Option) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandler(snapshots, scores, sched, logger, opts...))
}

func doRequest(router chi.Router, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, watchlist.NewMemoryStore(), scoring.NewMemoryStore(), &recordingScheduler{})
	rec := doRequest(router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_ProbeFailure(t *testing.T) {
	probe := func(context.Context) error { return errors.New("db down") }
	router := newTestRouter(t, watchlist.NewMemoryStore(), scoring.NewMemoryStore(), &recordingScheduler{},
		WithHealthCheck(probe))
	rec := doRequest(router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCurrentSnapshot(t *testing.T) {
	snapshots := watchlist.NewMemoryStore()
	router := newTestRouter(t, snapshots, scoring.NewMemoryStore(), &recordingScheduler{})

	rec := doRequest(router, http.MethodGet, "/watchlist/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "before any publish")

	require.NoError(t, snapshots.Publish(context.Background(), &domain.WatchlistSnapshot{
		ID:         "snap-1",
		ListDate:   "2026-08-20",
		Checksum:   "abc123",
		EntryCount: 42,
		IngestedAt: time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
	}))

	rec = doRequest(router, http.MethodGet, "/watchlist/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "snap-1", body.ID)
	assert.Equal(t, "2026-08-20", body.ListDate)
	assert.Equal(t, 42, body.EntryCount)
}

func TestRunStatus(t *testing.T) {
	scores := scoring.NewMemoryStore()
	router := newTestRouter(t, watchlist.NewMemoryStore(), scores, &recordingScheduler{})

	rec := doRequest(router, http.MethodGet, "/runs/2026-08-20", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/runs/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, scores.SaveRun(context.Background(), &domain.ScoreRun{
		ID:             "run-1",
		ListDate:       "2026-08-20",
		State:          domain.RunPartiallyCompleted,
		TotalCustomers: 10,
		Completed:      8,
		Failed:         2,
		FailedIDs:      []string{"c4", "c9"},
		StartedAt:      time.Now(),
		FinishedAt:     time.Now(),
	}))

	rec = doRequest(router, http.MethodGet, "/runs/2026-08-20", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(domain.RunPartiallyCompleted), body.State)
	assert.Equal(t, []string{"c4", "c9"}, body.FailedIDs)
	assert.NotEmpty(t, body.FinishedAt)
}

func TestScores_SortedAndPaginated(t *testing.T) {
	scores := scoring.NewMemoryStore()
	ctx := context.Background()
	for i, rec := range []domain.ScoreRecord{
		{CustomerID: "c-low", ListDate: "2026-08-20", Score: 12},
		{CustomerID: "c-high", ListDate: "2026-08-20", Score: 97},
		{CustomerID: "c-mid", ListDate: "2026-08-20", Score: 55},
	} {
		rec.ScoredAt = time.Now().Add(time.Duration(i) * time.Second)
		_, err := scores.InsertScoreIfAbsent(ctx, rec)
		require.NoError(t, err)
	}

	router := newTestRouter(t, watchlist.NewMemoryStore(), scores, &recordingScheduler{})

	rec := doRequest(router, http.MethodGet, "/scores/2026-08-20?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page scoresPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Scores, 2)
	assert.Equal(t, "c-high", page.Scores[0].CustomerID)
	assert.Equal(t, "c-mid", page.Scores[1].CustomerID)

	rec = doRequest(router, http.MethodGet, "/scores/2026-08-20?offset=2&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Scores, 1)
	assert.Equal(t, "c-low", page.Scores[0].CustomerID)
}

func TestScores_BadPageParams(t *testing.T) {
	router := newTestRouter(t, watchlist.NewMemoryStore(), scoring.NewMemoryStore(), &recordingScheduler{})

	rec := doRequest(router, http.MethodGet, "/scores/2026-08-20?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodGet, "/scores/2026-08-20?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDates(t *testing.T) {
	scores := scoring.NewMemoryStore()
	ctx := context.Background()
	for _, date := range []domain.ListDate{"2026-08-19", "2026-08-20"} {
		_, err := scores.InsertScoreIfAbsent(ctx, domain.ScoreRecord{
			CustomerID: "c1", ListDate: date, Score: 10, ScoredAt: time.Now(),
		})
		require.NoError(t, err)
	}

	router := newTestRouter(t, watchlist.NewMemoryStore(), scores, &recordingScheduler{})
	rec := doRequest(router, http.MethodGet, "/list-dates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body listDatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"2026-08-19", "2026-08-20"}, body.ListDates)
}

func TestEnqueueIngestion(t *testing.T) {
	sched := &recordingScheduler{}
	router := newTestRouter(t, watchlist.NewMemoryStore(), scoring.NewMemoryStore(), sched)

	rec := doRequest(router, http.MethodPost, "/jobs/ingestion", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, sched.ingestions)
}

func TestEnqueueScoring(t *testing.T) {
	sched := &recordingScheduler{}
	router := newTestRouter(t, watchlist.NewMemoryStore(), scoring.NewMemoryStore(), sched)

	rec := doRequest(router, http.MethodPost, "/jobs/scoring",
		strings.NewReader(`{"list_date":"2026-08-20"}`))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sched.scorings, 1)
	assert.Equal(t, domain.ListDate("2026-08-20"), sched.scorings[0])

	// no body means score against the current snapshot
	rec = doRequest(router, http.MethodPost, "/jobs/scoring", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sched.scorings, 2)
	assert.Equal(t, domain.ListDate(""), sched.scorings[1])

	rec = doRequest(router, http.MethodPost, "/jobs/scoring",
		strings.NewReader(`{"list_date":"20-08-2026"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueue_SchedulerFull(t *testing.T) {
	sched := &recordingScheduler{err: errors.New("job queue full")}
	router := newTestRouter(t, watchlist.NewMemoryStore(), scoring.NewMemoryStore(), sched)

	rec := doRequest(router, http.MethodPost, "/jobs/ingestion", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(router, http.MethodPost, "/jobs/scoring", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
