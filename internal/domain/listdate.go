package domain

import (
	"fmt"
	"time"
)

// ListDate identifies one published version of the watchlist. Snapshots are
// totally ordered by it, and the (customer, list date) pair keys score
// uniqueness.
//
// Usage: construct via ParseListDate at trust boundaries; direct casting
// bypasses validation.
type ListDate string

const listDateLayout = "2006-01-02"

// ParseListDate constructs a ListDate from external input.
func ParseListDate(s string) (ListDate, error) {
	if s == "" {
		return "", fmt.Errorf("list date cannot be empty")
	}
	if _, err := time.Parse(listDateLayout, s); err != nil {
		return "", fmt.Errorf("invalid list date %q: %w", s, err)
	}
	return ListDate(s), nil
}

// ListDateFrom truncates a timestamp to its calendar date in UTC.
func ListDateFrom(t time.Time) ListDate {
	return ListDate(t.UTC().Format(listDateLayout))
}

// Before reports whether d sorts before other. Lexicographic order on the
// YYYY-MM-DD form is chronological order.
func (d ListDate) Before(other ListDate) bool {
	return string(d) < string(other)
}

func (d ListDate) String() string {
	return string(d)
}
