package metadata

import (
	"strings"
	"unicode"
)

// BestMatch scores the results against the query and returns the highest
// scorer with its confidence filled in, or false when results is empty.
func BestMatch(query SearchQuery, results []Record) (Record, bool) {
	if len(results) == 0 {
		return Record{}, false
	}

	best := results[0]
	best.Confidence = Score(query, best)

	for _, result := range results[1:] {
		result.Confidence = Score(query, result)
		if result.Confidence > best.Confidence {
			best = result
		}
	}
	return best, true
}

// Score computes a similarity score (0.0-1.0) between the query and a result.
func Score(query SearchQuery, result Record) float64 {
	titleScore := similarity(normalize(query.Title), normalize(result.Title))
	artistScore := similarity(normalize(query.Artist), normalize(result.Artist))

	if query.Artist == "" {
		return titleScore
	}
	// Weight: 60% title, 40% artist
	return titleScore*0.6 + artistScore*0.4
}

// similarity returns how similar two strings are (0.0-1.0).
// Uses both token overlap and compact string comparison to handle cases
// like "theweeknd" vs "the weeknd".
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	// Check compact (no-space) equality first: handles "theweeknd" == "the weeknd"
	compactA := strings.ReplaceAll(a, " ", "")
	compactB := strings.ReplaceAll(b, " ", "")
	if compactA == compactB {
		return 1.0
	}

	// Token overlap
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	matches := 0
	for _, t := range tokensA {
		if setB[t] {
			matches++
		}
	}

	maxLen := len(tokensA)
	if len(tokensB) > maxLen {
		maxLen = len(tokensB)
	}
	return float64(matches) / float64(maxLen)
}

// normalize lowercases and strips non-alphanumeric characters for comparison.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
