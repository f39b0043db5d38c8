package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"listscreen/internal/domain"
	"listscreen/internal/scoring"
	"listscreen/internal/watchlist"
)

const (
	defaultScoresPageSize = 50
	maxScoresPageSize     = 500
)

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleCurrentSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Current(r.Context())
	if errors.Is(err, watchlist.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, "no watchlist snapshot published yet")
		return
	}
	if err != nil {
		h.logger.Error("loading current snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		ID:         snap.ID,
		ListDate:   string(snap.ListDate),
		Checksum:   snap.Checksum,
		EntryCount: snap.EntryCount,
		IngestedAt: snap.IngestedAt.Format(time.RFC3339),
	})
}

func (h *Handler) HandleListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.scores.ListDates(r.Context())
	if err != nil {
		h.logger.Error("listing score dates", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, string(d))
	}
	writeJSON(w, http.StatusOK, listDatesResponse{ListDates: out})
}

func (h *Handler) HandleRunStatus(w http.ResponseWriter, r *http.Request) {
	date, ok := h.listDateParam(w, r)
	if !ok {
		return
	}
	run, err := h.scores.RunForDate(r.Context(), date)
	if errors.Is(err, scoring.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "no score run for list date")
		return
	}
	if err != nil {
		h.logger.Error("loading run", "list_date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) HandleScores(w http.ResponseWriter, r *http.Request) {
	date, ok := h.listDateParam(w, r)
	if !ok {
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.scores.ScoresForDate(r.Context(), date, offset, limit)
	if err != nil {
		h.logger.Error("listing scores", "list_date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, scoresPageResponse{
		ListDate: string(date),
		Offset:   offset,
		Limit:    limit,
		Scores:   toScoreResponses(recs),
	})
}

func (h *Handler) HandleEnqueueIngestion(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.EnqueueIngestion(r.Context()); err != nil {
		h.logger.Error("enqueueing ingestion", "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not enqueue ingestion")
		return
	}
	h.logger.Info("ingestion enqueued")
	writeJSON(w, http.StatusAccepted, enqueuedResponse{Job: "watchlist_ingestion"})
}

type enqueueScoringRequest struct {
	ListDate string `json:"list_date"`
}

func (h *Handler) HandleEnqueueScoring(w http.ResponseWriter, r *http.Request) {
	var req enqueueScoringRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var date domain.ListDate
	if req.ListDate != "" {
		parsed, err := domain.ParseListDate(req.ListDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid list date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	if err := h.scheduler.EnqueueScoring(r.Context(), date); err != nil {
		h.logger.Error("enqueueing scoring", "list_date", date, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not enqueue scoring")
		return
	}
	h.logger.Info("scoring enqueued", "list_date", date)
	writeJSON(w, http.StatusAccepted, enqueuedResponse{Job: "batch_scoring", ListDate: string(date)})
}

func pageParams(r *http.Request) (offset, limit int, err error) {
	limit = defaultScoresPageSize
	q := r.URL.Query()
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if limit > maxScoresPageSize {
			limit = maxScoresPageSize
		}
	}
	return offset, limit, nil
}
