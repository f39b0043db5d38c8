package watchlist

import "context"

// RawListRecord is one decoded record from the upstream list provider. The
// provider owns fetching and wire-format parsing; the ingestor only sees this.
type RawListRecord struct {
	PrimaryName string   `json:"primary_name"`
	AltNames    []string `json:"alt_names,omitempty"`
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	Country     string   `json:"country,omitempty"`
	Category    string   `json:"category"`
	Remarks     string   `json:"remarks,omitempty"`
}

// ListSource supplies a lazy, finite sequence of raw records. The interface
// is kept one method small so tests can stub quickly.
type ListSource interface {
	// Next returns the next record. ok is false once the sequence is
	// exhausted. A non-nil error means the upstream source failed mid-read.
	Next(ctx context.Context) (rec RawListRecord, ok bool, err error)
}

// SliceSource adapts an in-memory slice to ListSource for tests and seeding.
type SliceSource struct {
	records []RawListRecord
	pos     int
}

func NewSliceSource(records []RawListRecord) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(_ context.Context) (RawListRecord, bool, error) {
	if s.pos >= len(s.records) {
		return RawListRecord{}, false, nil
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, true, nil
}
