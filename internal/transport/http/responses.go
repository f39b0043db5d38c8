package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"listscreen/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type snapshotResponse struct {
	ID         string `json:"id"`
	ListDate   string `json:"list_date"`
	Checksum   string `json:"checksum"`
	EntryCount int    `json:"entry_count"`
	IngestedAt string `json:"ingested_at"`
}

type runResponse struct {
	ID             string   `json:"id"`
	ListDate       string   `json:"list_date"`
	State          string   `json:"state"`
	TotalCustomers int      `json:"total_customers"`
	Completed      int      `json:"completed"`
	Failed         int      `json:"failed"`
	FailedIDs      []string `json:"failed_ids,omitempty"`
	StartedAt      string   `json:"started_at"`
	FinishedAt     string   `json:"finished_at,omitempty"`
}

type scoreResponse struct {
	CustomerID     string `json:"customer_id"`
	ListDate       string `json:"list_date"`
	Score          int    `json:"score"`
	MatchedEntryID string `json:"matched_entry_id,omitempty"`
	ScoredAt       string `json:"scored_at"`
}

type scoresPageResponse struct {
	ListDate string          `json:"list_date"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
	Scores   []scoreResponse `json:"scores"`
}

type listDatesResponse struct {
	ListDates []string `json:"list_dates"`
}

type enqueuedResponse struct {
	Job      string `json:"job"`
	ListDate string `json:"list_date,omitempty"`
}

func toRunResponse(run *domain.ScoreRun) runResponse {
	resp := runResponse{
		ID:             run.ID,
		ListDate:       string(run.ListDate),
		State:          string(run.State),
		TotalCustomers: run.TotalCustomers,
		Completed:      run.Completed,
		Failed:         run.Failed,
		FailedIDs:      run.FailedIDs,
		StartedAt:      run.StartedAt.Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func toScoreResponses(recs []domain.ScoreRecord) []scoreResponse {
	out := make([]scoreResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, scoreResponse{
			CustomerID:     rec.CustomerID,
			ListDate:       string(rec.ListDate),
			Score:          rec.Score,
			MatchedEntryID: rec.MatchedEntryID,
			ScoredAt:       rec.ScoredAt.Format(time.RFC3339),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
