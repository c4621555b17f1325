package metadata

import (
	"regexp"
	"strings"
)

// Patterns to remove from scraped page titles and raw queries
var titleCleanupPatterns = []*regexp.Regexp{
	// Parenthesized suffixes
	regexp.MustCompile(`(?i)\s*\(official\s+(music\s+)?video\)`),
	regexp.MustCompile(`(?i)\s*\(official\s+audio\)`),
	regexp.MustCompile(`(?i)\s*\(official\s+lyric\s+video\)`),
	regexp.MustCompile(`(?i)\s*\(full\s+(video\s+)?song\)`),
	regexp.MustCompile(`(?i)\s*\(lyrics?\)`),
	regexp.MustCompile(`(?i)\s*\(audio\)`),
	regexp.MustCompile(`(?i)\s*\(hd\)`),
	regexp.MustCompile(`(?i)\s*\(hq\)`),
	regexp.MustCompile(`(?i)\s*\(320\s*kbps\)`),

	// Bracketed suffixes
	regexp.MustCompile(`(?i)\s*\[official\s+(music\s+)?video\]`),
	regexp.MustCompile(`(?i)\s*\[official\s+audio\]`),
	regexp.MustCompile(`(?i)\s*\[full\s+(video\s+)?song\]`),
	regexp.MustCompile(`(?i)\s*\[lyrics?\]`),
	regexp.MustCompile(`(?i)\s*\[audio\]`),
	regexp.MustCompile(`(?i)\s*\[hd\]`),
	regexp.MustCompile(`(?i)\s*\[hq\]`),
	regexp.MustCompile(`(?i)\s*\[320\s*kbps\]`),

	// Download-site boilerplate
	regexp.MustCompile(`(?i)\s*-?\s*mp3\s+(song\s+)?download`),
	regexp.MustCompile(`(?i)\s*-?\s*free\s+download`),
}

// Patterns to extract featuring artists from the title
var featuringPattern = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+([^\)\]]+)[\)\]]`)

// Pattern for "Artist - Title" format (common in page titles)
var artistTitleSeparator = regexp.MustCompile(`^(.+?)\s*[-–—|]\s*(.+)$`)

// Any parenthetical or bracketed group, used when narrowing a query
var parentheticalPattern = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)

// NormalizeQuery takes a raw display title (typically scraped from a source
// page) and an optional artist and returns a cleaned SearchQuery.
func NormalizeQuery(title, artist string) SearchQuery {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)

	if title == "" {
		return SearchQuery{Title: title, Artist: artist}
	}

	for _, p := range titleCleanupPatterns {
		title = p.ReplaceAllString(title, "")
	}

	// Extract featuring artists (keep them stripped from title for cleaner search)
	title = featuringPattern.ReplaceAllString(title, "")

	// If artist is empty, try to split "Artist - Title" from the title string
	if artist == "" {
		if m := artistTitleSeparator.FindStringSubmatch(title); m != nil {
			artist = strings.TrimSpace(m[1])
			title = strings.TrimSpace(m[2])
		}
	}

	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)

	return SearchQuery{
		Title:  title,
		Artist: artist,
	}
}

// NarrowQuery drops parenthetical and bracketed suffixes from a raw query,
// for the second resolution attempt. Returns "" when narrowing would not
// change the query.
func NarrowQuery(query string) string {
	narrowed := parentheticalPattern.ReplaceAllString(query, "")
	narrowed = strings.Join(strings.Fields(narrowed), " ")
	if narrowed == "" || narrowed == strings.TrimSpace(query) {
		return ""
	}
	return narrowed
}
