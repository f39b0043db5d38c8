package domain

import "time"

// EntryCategory classifies a watchlist entry by the kind of sanctioned party.
type EntryCategory string

const (
	CategoryIndividual EntryCategory = "individual"
	CategoryVessel     EntryCategory = "vessel"
	CategoryEntity     EntryCategory = "entity"
)

// validEntryCategories is the single source of truth for supported categories.
var validEntryCategories = map[EntryCategory]bool{
	CategoryIndividual: true,
	CategoryVessel:     true,
	CategoryEntity:     true,
}

// IsValid checks whether the category is one of the supported enum values.
func (c EntryCategory) IsValid() bool {
	return validEntryCategories[c]
}

func (c EntryCategory) String() string {
	return string(c)
}

// WatchlistEntry is one sanctioned-party record inside a snapshot. Original
// text is kept for display; the Normalized* fields carry the matching-ready
// forms produced at ingestion time. Entries are never mutated after the
// snapshot they belong to is published.
type WatchlistEntry struct {
	ID             string
	PrimaryName    string
	AlternateNames []string
	Street         string
	City           string
	Country        string
	Category       EntryCategory
	Remarks        string

	NormalizedName     string
	NormalizedAltNames []string
	NormalizedStreet   string
	NormalizedCity     string
	NormalizedCountry  string
}

// HasLocation reports whether the entry carries any location data usable for
// the location component of a match score.
func (e *WatchlistEntry) HasLocation() bool {
	return e.NormalizedStreet != "" || e.NormalizedCity != "" || e.NormalizedCountry != ""
}

// WatchlistSnapshot is a named, dated, immutable collection of entries plus
// ingestion metadata. Corrections require publishing a new snapshot; a
// published snapshot is never mutated in place.
type WatchlistSnapshot struct {
	ID         string
	ListDate   ListDate
	Checksum   string
	IngestedAt time.Time
	EntryCount int
	Entries    []WatchlistEntry
}
