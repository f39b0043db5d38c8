// Package screening computes the match score between one customer identity
// and one watchlist snapshot. Scoring is pure and deterministic; snapshots
// are immutable once published, so concurrent workers share them freely.
package screening

import (
	"math"

	"listscreen/internal/domain"
	"listscreen/internal/watchlist/normalize"
)

// Weighting of the combined score when the entry carries location data. The
// watchlist's address data is sparse and unreliable; name is the
// authoritative signal. Tunable, not a compatibility contract.
const (
	nameWeight     = 0.8
	locationWeight = 0.2
)

// Weight of the free-text address ratio inside the location component,
// relative to the exact city/country match.
const addressWeight = 0.4

// Result is the outcome of screening one candidate against one snapshot.
type Result struct {
	Score          int
	MatchedEntryID string
}

// Score compares the candidate against every entry (and alternate name) in
// the snapshot and returns the best score in [0,100] with the matching entry.
// An empty candidate name or an empty snapshot scores 0 with no match; an
// empty list is a valid, if degenerate, snapshot state.
func Score(candidate domain.CustomerIdentity, snapshot *domain.WatchlistSnapshot) Result {
	if snapshot == nil || len(snapshot.Entries) == 0 {
		return Result{}
	}

	name := normalize.Text(candidate.DisplayName)
	if name == "" {
		return Result{}
	}
	address := normalize.Text(candidate.Address)
	city := normalize.Text(candidate.City)
	country := normalize.Text(candidate.Country)

	best := Result{}
	bestRaw := -1.0

	for idx := range snapshot.Entries {
		entry := &snapshot.Entries[idx]

		nameSim := nameSimilarity(name, entry.NormalizedName)
		for _, alt := range entry.NormalizedAltNames {
			if s := nameSimilarity(name, alt); s > nameSim {
				nameSim = s
			}
		}

		raw := nameSim
		if entry.HasLocation() {
			raw = nameWeight*nameSim + locationWeight*locationSimilarity(address, city, country, entry)
		}

		if raw > bestRaw {
			bestRaw = raw
			best = Result{Score: clampScore(raw), MatchedEntryID: entry.ID}
		}
	}

	return best
}

// locationSimilarity blends exact city/country agreement with a lighter
// string similarity on the free-text address when the entry has one.
func locationSimilarity(address, city, country string, entry *domain.WatchlistEntry) float64 {
	exact := 0.0
	hasExactFields := entry.NormalizedCity != "" || entry.NormalizedCountry != ""
	if hasExactFields {
		matched, total := 0, 0
		if entry.NormalizedCity != "" {
			total++
			if city == entry.NormalizedCity {
				matched++
			}
		}
		if entry.NormalizedCountry != "" {
			total++
			if country == entry.NormalizedCountry {
				matched++
			}
		}
		if matched == total {
			exact = 1.0
		}
	}

	if entry.NormalizedStreet == "" {
		return exact
	}
	addrSim := 0.0
	if address != "" {
		addrSim = levenshteinRatio(address, entry.NormalizedStreet)
	}
	if !hasExactFields {
		return addrSim
	}
	return (1-addressWeight)*exact + addressWeight*addrSim
}

func clampScore(raw float64) int {
	score := int(math.Round(raw * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
