// Package httptransport is the thin read surface consumed by the operator UI
// plus the POST endpoints that enqueue work. It delegates to stores and the
// scheduler; no screening logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"listscreen/internal/domain"
	"listscreen/internal/jobs"
	"listscreen/internal/scoring"
	"listscreen/internal/watchlist"
)

// Handler wires the screening endpoints to stores and the job scheduler.
type Handler struct {
	snapshots watchlist.SnapshotStore
	scores    scoring.Store
	scheduler jobs.Scheduler
	health    func(ctx context.Context) error
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealthCheck adds a dependency probe to /healthz.
func WithHealthCheck(probe func(ctx context.Context) error) Option {
	return func(h *Handler) { h.health = probe }
}

func NewHandler(snapshots watchlist.SnapshotStore, scores scoring.Store, scheduler jobs.Scheduler, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		snapshots: snapshots,
		scores:    scores,
		scheduler: scheduler,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter mounts all endpoints.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)

	r.Get("/watchlist/current", h.HandleCurrentSnapshot)
	r.Get("/list-dates", h.HandleListDates)
	r.Get("/runs/{listDate}", h.HandleRunStatus)
	r.Get("/scores/{listDate}", h.HandleScores)

	r.Post("/jobs/ingestion", h.HandleEnqueueIngestion)
	r.Post("/jobs/scoring", h.HandleEnqueueScoring)

	return r
}

// listDateParam parses the {listDate} URL segment, writing a 400 on failure.
func (h *Handler) listDateParam(w http.ResponseWriter, r *http.Request) (domain.ListDate, bool) {
	date, err := domain.ParseListDate(chi.URLParam(r, "listDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid list date, expected YYYY-MM-DD")
		return "", false
	}
	return date, true
}
