package screening

import "listscreen/internal/watchlist/normalize"

// nameSimilarity compares two canonicalized names in [0,1]. It takes the
// maximum of token-set overlap and whole-string edit-distance ratio: the
// first tolerates word reordering ("SMITH JOHN" vs "JOHN SMITH"), the second
// tolerates typos within tokens.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	jac := jaccard(normalize.Tokens(a), normalize.Tokens(b))
	lev := levenshteinRatio(a, b)
	if jac > lev {
		return jac
	}
	return lev
}

// jaccard is token-set intersection over union.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	union := len(set)
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

// levenshteinRatio is 1 - distance/maxLen over runes, in [0,1].
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a two-row matrix.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
