package metadata

import (
	"context"
	"time"
)

// Record is the metadata for a single track. Only title, artist, and album
// are required when tagging; every other field may be legitimately absent
// (zero value) and its absence must not abort anything downstream.
type Record struct {
	Title  string
	Artist string
	Album  string

	// Year is the 4-digit release year, "" when unknown.
	Year string

	TrackNumber int
	TotalTracks int
	DiscNumber  int

	// Genres in provider order; only the first is embedded.
	Genres []string

	Composers []string

	// Popularity is a 0-100 score; 0 means unknown.
	Popularity int

	CoverURL string

	// Derived audio-analysis fields. Pass-through only: nothing here is
	// required by tagging.
	Tempo float64
	Key   string

	Duration   time.Duration
	Confidence float64 // 0.0-1.0, how confident we are in the match
}

// FirstGenre returns the leading genre, or "".
func (r Record) FirstGenre() string {
	if len(r.Genres) == 0 {
		return ""
	}
	return r.Genres[0]
}

// SearchQuery represents a cleaned-up query for searching metadata providers.
type SearchQuery struct {
	Title  string
	Artist string
	Album  string
}

// Provider is the interface that metadata providers must implement.
type Provider interface {
	Name() string
	Search(ctx context.Context, query SearchQuery) ([]Record, error)
}
